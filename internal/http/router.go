package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/medreport-backend/internal/http/handlers"
	httpMW "github.com/yungbote/medreport-backend/internal/http/middleware"
	"github.com/yungbote/medreport-backend/internal/observability"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AllowedOrigins []string
	Tracing        bool
	Metrics        *observability.Metrics

	HealthHandler *httpH.HealthHandler
	ReportHandler *httpH.ReportHandler
	PageHandler   *httpH.PageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware("medreport"))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Metrics
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Pages
	if cfg.PageHandler != nil {
		r.SetHTMLTemplate(httpH.Templates())
		r.GET("/", cfg.PageHandler.Index)
		r.POST("/upload", cfg.PageHandler.Upload)
		r.GET("/reports/:id", cfg.PageHandler.Report)
		r.POST("/reports/:id/action", cfg.PageHandler.Action)
		r.POST("/reports/:id/ask", cfg.PageHandler.Ask)
	}

	api := r.Group("/api")
	{
		// Reports
		if cfg.ReportHandler != nil {
			api.POST("/reports", cfg.ReportHandler.Upload)
			api.GET("/reports/:id", cfg.ReportHandler.Get)
			api.POST("/reports/:id/actions/:action", cfg.ReportHandler.Action)
			api.POST("/reports/:id/ask", cfg.ReportHandler.Ask)
		}
	}

	return r
}
