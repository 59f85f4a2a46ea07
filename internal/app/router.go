package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/medreport-backend/internal/config"
	httpserver "github.com/yungbote/medreport-backend/internal/http"
	"github.com/yungbote/medreport-backend/internal/observability"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg *config.Config, handlers Handlers, metrics *observability.Metrics) *httpserver.Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpserver.NewServer(cfg.HTTP, httpserver.RouterConfig{
		Log:            log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Tracing:        observability.TracingEnabled(),
		Metrics:        metrics,
		HealthHandler:  handlers.Health,
		ReportHandler:  handlers.Report,
		PageHandler:    handlers.Page,
	})
}
