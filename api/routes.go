package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/api/handlers"
	"github.com/customeros/inboxsync/api/middleware"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services/events"
)

const APIKeyHeader = "X-INBOXSYNC-API-KEY"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, log logger.Logger, index interfaces.IndexStore, orchestrator interfaces.SyncOrchestrator, apikey string) {
	if index == nil || orchestrator == nil {
		panic("index and orchestrator are required")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	apiHandlers := handlers.InitHandlers(log, index, orchestrator)

	// Health check and status endpoints (no custom context needed)
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(orchestrator))

	if apikey == "" {
		log.Warnf("No API key configured, /v1 rejects every request")
	}
	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  APIKeyHeader,
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware(events.AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		messages := api.Group("/messages")
		{
			messages.GET("/search", apiHandlers.Messages.Search())
			messages.GET("/:id", apiHandlers.Messages.Get())
		}

		accounts := api.Group("/accounts")
		{
			accounts.POST("/:id/sync", apiHandlers.Accounts.TriggerSync())
		}
	}
}
