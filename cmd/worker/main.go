package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ruraldash/internal/app"
	"ruraldash/internal/config"
	"ruraldash/internal/logging"
)

// Worker consumes refresh jobs from the shared queue and refreshes the
// mirror on REFRESH_INTERVAL.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer logger.Sync()
	logging.ConfigWarnings(logger, cfg.Warnings)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.Warn("QUEUE_BACKEND=memory: only the periodic refresh will run in this process")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	if !cfg.OfflineMode {
		a.Probe(ctx)
	}
	a.Dashboard.Refresh(ctx)

	logger.Info("worker started, waiting for jobs", zap.Duration("interval", cfg.RefreshInterval))
	if err := a.Refresher(cfg.RefreshInterval).Run(ctx); err != nil {
		logger.Error("refresher stopped", zap.Error(err))
	}
	logger.Info("worker stopped")
}
