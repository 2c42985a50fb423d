package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ruraldash/internal/app"
	"ruraldash/internal/config"
	"ruraldash/internal/httpapi"
	"ruraldash/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer logger.Sync()
	logging.ConfigWarnings(logger, cfg.Warnings)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// show whatever was mirrored last time before the first network round-trip
	a.Dashboard.LoadCached(ctx)
	if !cfg.OfflineMode {
		a.Probe(ctx)
	}
	a.Dashboard.Refresh(ctx)

	// in process jobs are refreshed here; with a shared queue the worker
	// refreshes and this process follows the mirror
	go func() {
		if err := a.Background().Run(ctx); err != nil {
			logger.Error("background loop stopped", zap.Error(err))
		}
	}()

	srv := httpapi.NewServer(":"+cfg.HTTPPort, a.Router())
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.Bool("offline", a.Layer.Offline()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
