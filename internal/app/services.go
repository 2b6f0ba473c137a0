package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/yungbote/mindtrace-backend/internal/modules/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/bank"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/calibration"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/flow"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/prefetch"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/report"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/stopping"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/synthesis"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
	"github.com/yungbote/mindtrace-backend/internal/services"
)

type Services struct {
	Sessions services.SessionStore
	Auth     services.AuthService
	Limiter  *services.RateLimiter

	Pipeline   *flow.Pipeline
	Finalizer  *report.Finalizer
	Prefetch   *prefetch.Scheduler
	Assessment assessment.Usecases
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	now := time.Now

	secret := cfg.JWTSecretKey
	if secret == "" {
		s, err := ephemeralSecret()
		if err != nil {
			return Services{}, err
		}
		secret = s
		log.Warn("JWT_SECRET_KEY not set; tokens will not survive a restart")
	}
	if cfg.AppPasscode == "" {
		log.Warn("APP_PASSCODE not set; authentication is disabled")
	}
	auth, err := services.NewAuthService(log, cfg.AppPasscode, secret, cfg.SessionTTL)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	sessions := services.NewSessionStore(log, metrics, now)
	limiter := services.NewRateLimiter(services.DefaultRateLimitPolicy(), log, metrics, now)

	catalog, err := bank.LoadCatalog()
	if err != nil {
		return Services{}, fmt.Errorf("load question catalog: %w", err)
	}
	pipeline := flow.New(cfg.PipelineConfig(), flow.Deps{
		Catalog:    catalog,
		Stopper:    stopping.New(stopping.DefaultConfig()),
		Calibrator: calibration.New(clients.Oracle, log, metrics),
		Generator:  synthesis.NewGenerator(clients.Oracle, log),
		Log:        log,
		Metrics:    metrics,
		Now:        now,
	})
	finalizer := report.NewFinalizer(clients.Oracle, log)

	var sched *prefetch.Scheduler
	if cfg.PrefetchEnabled {
		sched = prefetch.New(sessions, pipeline,
			prefetch.WithLogger(log),
			prefetch.WithMetrics(metrics),
			prefetch.WithTracer(observability.Tracer("mindtrace/prefetch")),
			prefetch.WithTimeout(cfg.PrefetchTimeout),
			prefetch.WithClock(now),
		)
	}

	usecases := assessment.New(assessment.UsecasesDeps{
		Log:        log,
		Metrics:    metrics,
		Store:      sessions,
		Auth:       auth,
		Limiter:    limiter,
		Pipeline:   pipeline,
		Finalizer:  finalizer,
		Prefetch:   sched,
		Mirror:     clients.ReportMirror,
		ReportTTL:  cfg.ReportTTL,
		SessionTTL: cfg.SessionTTL,
		Now:        now,
	})

	log.Info("assessment engine ready",
		"question_source", cfg.QuestionSource,
		"min_questions", cfg.MinQuestions,
		"max_questions", cfg.MaxQuestions,
		"catalog_size", catalog.Len(),
		"prefetch", cfg.PrefetchEnabled,
		"oracle", cfg.Oracle.Enabled(),
		"report_mirror", clients.ReportMirror != nil,
	)

	return Services{
		Sessions:   sessions,
		Auth:       auth,
		Limiter:    limiter,
		Pipeline:   pipeline,
		Finalizer:  finalizer,
		Prefetch:   sched,
		Assessment: usecases,
	}, nil
}

func ephemeralSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
