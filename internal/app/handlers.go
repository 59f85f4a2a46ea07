package app

import (
	"github.com/yungbote/medreport-backend/internal/config"
	httpH "github.com/yungbote/medreport-backend/internal/http/handlers"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Report *httpH.ReportHandler
	Page   *httpH.PageHandler
}

func wireHandlers(log *logger.Logger, cfg *config.Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Report: httpH.NewReportHandler(services.Pipeline, cfg.Intake.MaxUploadBytes),
		Page:   httpH.NewPageHandler(services.Pipeline, cfg.Intake.MaxUploadBytes),
	}
}
