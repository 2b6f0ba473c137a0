// Package oracle wraps the chat-completions engine with pacing, tracing and
// JSON decoding. Every caller supplies a deterministic fallback, so an oracle
// failure degrades a step instead of failing it.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yungbote/mindtrace-backend/internal/inference/config"
	"github.com/yungbote/mindtrace-backend/internal/inference/engine"
	"github.com/yungbote/mindtrace-backend/internal/inference/engine/oaihttp"
	"github.com/yungbote/mindtrace-backend/internal/inference/jsonrepair"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

var ErrDisabled = errors.New("oracle disabled: no api key configured")

// Request labels used in logs, metrics and schema names.
const (
	LabelQuestionGeneration = "question_generation"
	LabelDistributionUpdate = "distribution_update"
	LabelFinalReport        = "final_report"
)

type Request struct {
	Label       string
	System      string
	User        string
	Schema      map[string]any
	Temperature float64
}

// Requester is the narrow surface the assessment modules depend on.
type Requester interface {
	Complete(ctx context.Context, req Request, out any) error
}

type Outcome string

const (
	OutcomeModel    Outcome = "success"
	OutcomeFallback Outcome = "fallback"
	OutcomeDisabled Outcome = "disabled"
)

type Client struct {
	engine  engine.Engine
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

type Option func(*Client)

func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a client for cfg. Without an API key the client is constructed
// disabled and every Complete call returns ErrDisabled.
func New(cfg config.OracleConfig, opts ...Option) (*Client, error) {
	var eng engine.Engine
	if cfg.Enabled() {
		e, err := oaihttp.New(cfg.Engine)
		if err != nil {
			return nil, fmt.Errorf("oracle engine: %w", err)
		}
		eng = e
	}
	if cfg.RPS > 0 {
		opts = append([]Option{WithLimiter(rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Burst, 1)))}, opts...)
	}
	opts = append([]Option{WithTimeout(cfg.CallTimeout.Duration)}, opts...)
	return NewWithEngine(eng, cfg.Model, opts...), nil
}

// NewWithEngine wires an arbitrary engine; a nil engine yields a disabled client.
func NewWithEngine(eng engine.Engine, model string, opts ...Option) *Client {
	c := &Client{
		engine:  eng,
		model:   model,
		timeout: config.DefaultCallTimeout,
		log:     logger.NewNop(),
		tracer:  observability.Tracer("mindtrace/oracle"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Enabled() bool { return c != nil && c.engine != nil }

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Complete sends req and decodes the repaired JSON reply into out.
func (c *Client) Complete(ctx context.Context, req Request, out any) (err error) {
	if !c.Enabled() {
		if c != nil {
			c.log.Debug("openai.mock_fallback", "label", req.Label)
			c.metrics.ObserveOracle(req.Label, string(OutcomeDisabled), 0)
		}
		return ErrDisabled
	}

	ctx, span := c.tracer.Start(ctx, "oracle."+req.Label, trace.WithAttributes(
		attribute.String("oracle.label", req.Label),
		attribute.String("oracle.model", c.model),
	))
	start := time.Now()
	defer func() {
		outcome := OutcomeModel
		if err != nil {
			outcome = OutcomeFallback
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("oracle.outcome", string(outcome)))
		span.End()
		c.metrics.ObserveOracle(req.Label, string(outcome), time.Since(start))
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("oracle %s: rate wait: %w", req.Label, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug("openai.request", "label", req.Label, "model", c.model)
	text, err := c.engine.GenerateText(callCtx, c.model, engine.Prompt(req.System, req.User), engine.GenerateOptions{
		Temperature: req.Temperature,
		JSONSchema:  &engine.JSONSchema{Name: req.Label, Schema: req.Schema},
	})
	if err != nil {
		c.log.Warn("openai.request_failed", "label", req.Label, "error", err)
		return fmt.Errorf("oracle %s: %w", req.Label, err)
	}
	if err := jsonrepair.Unmarshal(text, out); err != nil {
		c.log.Warn("openai.parse_failed", "label", req.Label, "error", err)
		return fmt.Errorf("oracle %s: decode: %w", req.Label, err)
	}
	c.log.Debug("openai.response", "label", req.Label, "latency_ms", time.Since(start).Milliseconds())
	return nil
}

// Call runs req against r and returns the decoded value, or fallback() when
// the oracle is disabled or fails.
func Call[T any](ctx context.Context, r Requester, req Request, fallback func() T) (T, Outcome) {
	if r == nil {
		return fallback(), OutcomeDisabled
	}
	var out T
	if err := r.Complete(ctx, req, &out); err != nil {
		if errors.Is(err, ErrDisabled) {
			return fallback(), OutcomeDisabled
		}
		return fallback(), OutcomeFallback
	}
	return out, OutcomeModel
}
