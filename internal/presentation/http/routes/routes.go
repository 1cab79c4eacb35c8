// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/tractcall-go/internal/application/container"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/speech"
	"github.com/AtRiskMedia/tractcall-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/tractcall-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware(config.CORSOrigins))

	// Prometheus scrape endpoint, outside tenant scope.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// A nil *AssemblyAITranscriber must stay a nil interface.
	var transcriber speech.Transcriber
	if container.Transcriber != nil {
		transcriber = container.Transcriber
	}

	// Initialize handlers
	voiceHandlers := handlers.NewVoiceHandlers(
		container.Orchestrator,
		container.Broadcaster,
		container.Monitor,
		transcriber,
		container.Logger,
		container.PerfTracker,
	)
	sessionHandlers := handlers.NewSessionHandlers(container.Orchestrator, container.Broadcaster, container.Monitor, container.Logger)
	authHandlers := handlers.NewAuthHandlers(handlers.AuthConfig{
		PasswordHash: config.AdminPasswordHash,
		JWTSecret:    config.JWTSecret,
		TokenTTL:     config.JWTTokenTTL,
	}, container.Logger, container.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(container.Monitor, container.Sessions, container.TenantManager.ActiveCount)

	// API routes with tenant middleware
	api := r.Group("/api/v1")
	api.GET("/health", healthHandlers.GetHealth)

	tenantAPI := api.Group("")
	tenantAPI.Use(middleware.TenantMiddleware(container.Detector, container.TenantManager, container.Logger, container.PerfTracker))
	{
		tenantAPI.POST("/auth/token", authHandlers.PostToken)

		bridge := tenantAPI.Group("")
		bridge.Use(middleware.BridgeAuthMiddleware(config.JWTSecret, container.Logger))
		{
			voice := bridge.Group("/voice")
			{
				voice.POST("/utterance", voiceHandlers.PostUtterance)
				voice.POST("/transcribe", voiceHandlers.PostTranscribe)
				voice.GET("/stream", voiceHandlers.GetStream)
			}

			sessions := bridge.Group("/sessions")
			{
				sessions.GET("/:id", sessionHandlers.GetSession)
				sessions.DELETE("/:id", sessionHandlers.DeleteSession)
				sessions.GET("/:id/events", sessionHandlers.GetSessionEvents)
			}
		}
	}

	return r
}
