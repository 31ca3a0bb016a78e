package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/openlingo/openlingo-backend/internal/http/handlers"
	httpMW "github.com/openlingo/openlingo-backend/internal/http/middleware"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

type RouterConfig struct {
	Mode        string
	CORSOrigins []string
	Log         *logger.Logger

	ImportHandler  *httpH.ImportHandler
	JobHandler     *httpH.JobHandler
	BatchHandler   *httpH.BatchHandler
	AnalyzeHandler *httpH.AnalyzeHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "prod" || cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	api := r.Group("/api")
	{
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
		}
		if cfg.ImportHandler != nil {
			api.POST("/imports", cfg.ImportHandler.SubmitImport)
		}
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			api.POST("/jobs/:id/restart", cfg.JobHandler.RestartJob)
		}
		if cfg.BatchHandler != nil {
			api.POST("/batches", cfg.BatchHandler.SubmitBatch)
			api.GET("/batches/:id", cfg.BatchHandler.GetBatch)
			api.POST("/batches/:id/quality-check", cfg.BatchHandler.QualityCheck)
		}
		if cfg.AnalyzeHandler != nil {
			api.POST("/analyze", cfg.AnalyzeHandler.Analyze)
		}
	}
	return r
}
