/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payment engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment + optional .env)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Connect Redis for statistics cache invalidation (optional)
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION (environment):
  PORT                  HTTP server port (default: 8080)
  DB_PATH               SQLite database path (default: payments.db)
  REDIS_URL             Redis URL; empty disables cache invalidation
  CORS_ALLOWED_ORIGINS  Comma-separated origin list
  LOG_FORMAT            json | console (default: json)
  LOG_LEVEL             zerolog level (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT, default 30s)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quickstep/payment-engine/api"
	"github.com/quickstep/payment-engine/cache"
	"github.com/quickstep/payment-engine/config"
	"github.com/quickstep/payment-engine/notify"
	"github.com/quickstep/payment-engine/obs"
	"github.com/quickstep/payment-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := obs.NewLogger("console", "info")
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	redisClient, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	invalidator := cache.NewInvalidator(redisClient, logger)

	metrics := obs.NewMetrics()
	handler := api.NewHandler(store, invalidator, notify.LogNotifier{Logger: logger}, metrics, logger)
	router := api.NewRouter(handler, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}
