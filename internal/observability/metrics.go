package observability

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

const namespace = "mindtrace"

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	oracleRequests *prometheus.CounterVec
	oracleLatency  *prometheus.HistogramVec

	prefetchEvents *prometheus.CounterVec
	stopDecisions  *prometheus.CounterVec
	questionSource *prometheus.CounterVec
	calibrations   *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	sessionsActive prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current returns the process metrics, or nil when metrics are disabled. All
// methods are nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		if !Enabled() {
			return
		}
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds an isolated registry. Tests use it directly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "api", Name: "inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		oracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "requests_total",
			Help: "Oracle calls by label and outcome (success, retry_success, fallback, disabled).",
		}, []string{"label", "outcome"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "request_duration_seconds",
			Help:    "Oracle call latency including retries.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"label", "outcome"}),
		prefetchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "prefetch", Name: "events_total",
			Help: "Prefetch lifecycle events (scheduled, skipped, completed, hit, miss).",
		}, []string{"event", "reason"}),
		stopDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "stop_decisions_total",
			Help: "Stop decisions by reason and detail.",
		}, []string{"reason", "detail"}),
		questionSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "question", Name: "source_total",
			Help: "Next-question sources (curated, bank, model, fallback, prefetch).",
		}, []string{"source"}),
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "calibration", Name: "attempts_total",
			Help: "Calibration attempts by path and whether the update was applied.",
		}, []string{"path", "applied"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"scope"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "active",
			Help: "Sessions held in memory.",
		}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.oracleRequests, m.oracleLatency,
		m.prefetchEvents, m.stopDecisions, m.questionSource,
		m.calibrations, m.rateLimited, m.sessionsActive,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveOracle(label, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.oracleRequests.WithLabelValues(label, outcome).Inc()
	if dur > 0 {
		m.oracleLatency.WithLabelValues(label, outcome).Observe(dur.Seconds())
	}
}

func (m *Metrics) IncPrefetch(event, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.prefetchEvents.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) IncStopDecision(reason, detail string) {
	if m == nil {
		return
	}
	m.stopDecisions.WithLabelValues(reason, detail).Inc()
}

func (m *Metrics) IncQuestionSource(source string) {
	if m == nil {
		return
	}
	m.questionSource.WithLabelValues(source).Inc()
}

func (m *Metrics) IncCalibration(path string, applied bool) {
	if m == nil {
		return
	}
	v := "false"
	if applied {
		v = "true"
	}
	m.calibrations.WithLabelValues(path, v).Inc()
}

func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}
