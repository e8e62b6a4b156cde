package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/dmarcwatch/reportstack/api/handlers"
	"github.com/dmarcwatch/reportstack/api/middleware"
	"github.com/dmarcwatch/reportstack/config"
	"github.com/dmarcwatch/reportstack/internal/repository"
	"github.com/dmarcwatch/reportstack/internal/tracing"
	"github.com/dmarcwatch/reportstack/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, cfg *config.Config, s *services.Services, repos *repository.Repositories) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(repos, s)

	// Health check and status endpoints live outside the keyed group
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(cfg))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-REPORTSTACK-API-KEY",
		ValidAPIKey: cfg.AppConfig.APIKey,
	})

	v1 := r.Group("/v1")
	v1.Use(apiKeyMiddleware)
	v1.Use(middleware.TracingMiddleware())
	{
		ingested := v1.Group("/ingested-reports")
		{
			ingested.GET("", apiHandlers.IngestedReports.List())
			ingested.GET("/:id", apiHandlers.IngestedReports.Get())
			ingested.POST("/:id/requeue", apiHandlers.Admin.RequeueReport())
		}

		reports := v1.Group("/reports")
		{
			reports.GET("", apiHandlers.DmarcReports.List())
			reports.GET("/:id", apiHandlers.DmarcReports.Get())
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/ingest", apiHandlers.Admin.TriggerIngest(cfg.PipelineConfig.IngestBatchLimit))
			admin.POST("/process", apiHandlers.Admin.TriggerProcess(cfg.PipelineConfig.ProcessBatchLimit))
		}
	}
}
