package app

import (
	"fmt"

	"github.com/yungbote/mindtrace-backend/internal/clients/redis"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

type Clients struct {
	Oracle *oracle.Client
	// nil when REDIS_ADDR is unset
	ReportMirror redis.ReportMirror
}

func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	oc, err := oracle.New(cfg.Oracle, oracle.WithLogger(log), oracle.WithMetrics(metrics))
	if err != nil {
		return Clients{}, fmt.Errorf("init oracle client: %w", err)
	}
	if !cfg.Oracle.Enabled() {
		log.Warn("OPENAI_API_KEY not set; oracle calls use deterministic fallbacks")
	}

	var mirror redis.ReportMirror
	if cfg.RedisAddr != "" {
		m, err := redis.NewReportMirror(log, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis report mirror: %w", err)
		}
		mirror = m
	}

	return Clients{Oracle: oc, ReportMirror: mirror}, nil
}

func (c Clients) Close() error {
	if c.ReportMirror != nil {
		return c.ReportMirror.Close()
	}
	return nil
}
