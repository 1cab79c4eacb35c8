// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/tractcall-go/internal/application/container"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/tractcall-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/tractcall-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// NewLogger builds the channeled logger from pkg/config.
func NewLogger() (*logging.ChanneledLogger, error) {
	cfg := logging.DefaultLoggerConfig()
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	cfg.JSONFormat = config.LogFormatRaw != "text"
	cfg.OutputToFile = config.LogToFile
	cfg.LogDirectory = config.LogDirectory
	return logging.NewChanneledLogger(cfg)
}

// Initialize performs the complete multi-tenant startup sequence and blocks
// until a shutdown signal arrives.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  tractcall-go
` + "\033[97m" + `  voice dialogue service
` + "\033[0m")

	// Step 1: Initialize logging
	log.Println("Initializing logging...")
	logger, err := NewLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Logging initialized - switching to channeled logging",
		"level", config.LogLevel,
		"format", config.LogFormatRaw)

	// Step 2: Create dependency injection container
	logger.Startup().Info("Initializing dependency injection container...")
	containerStart := time.Now()
	appContainer, err := container.NewContainer(ctx, logger, container.Options{WithDatabase: true})
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	logger.Startup().Info("Dependency injection container created", "duration", time.Since(containerStart))
	tenantManager := appContainer.TenantManager

	// Step 3: Pre-activate tenants found on disk
	logger.Startup().Info("Starting tenant pre-activation...", "tenantsDir", config.TenantsDir)
	if err := tenantManager.PreActivateAllTenants(); err != nil {
		return fmt.Errorf("tenant pre-activation failed: %w", err)
	}
	activeCount := tenantManager.ActiveCount()
	logger.Startup().Info("Active tenant contexts verified", "activeTenants", activeCount)

	// Step 4: Start background workers
	logger.Startup().Info("Starting background session sweep worker...")
	go appContainer.CleanupWorker.Start(ctx)
	go appContainer.Monitor.Start(ctx)

	// Step 5: Start HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", port)

	// Step 6: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"activeTenants", activeCount,
		"port", port)

	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}

	shutdownStart := time.Now()

	// Cancel background tasks
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Waiting for summary deliveries and closing connections...")
	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing container resources", "error", err.Error())
	}

	logger.Shutdown().Info("Closing tenant manager...")
	if err := tenantManager.Close(); err != nil {
		logger.Shutdown().Error("Error closing tenant manager", "error", err.Error())
	} else {
		logger.Shutdown().Info("Tenant manager closed successfully")
	}
	tenant.ClosePools()

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
