package app

import (
	apphttp "github.com/yungbote/mindtrace-backend/internal/http"
	httpH "github.com/yungbote/mindtrace-backend/internal/http/handlers"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Auth       *httpH.AuthHandler
	Assessment *httpH.AssessmentHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(services.Sessions),
		Auth:       httpH.NewAuthHandler(services.Assessment),
		Assessment: httpH.NewAssessmentHandler(services.Assessment),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, tracing bool) *apphttp.Server {
	serviceName := ""
	if tracing {
		serviceName = cfg.Tracing.ServiceName
	}
	return apphttp.NewServer(cfg.Addr(), apphttp.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		CORSOrigins:       cfg.CORSOrigins,
		ServiceName:       serviceName,
		AuthHandler:       handlers.Auth,
		AssessmentHandler: handlers.Assessment,
		HealthHandler:     handlers.Health,
	})
}
