// Package app assembles the long-lived components shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ruraldash/internal/auth"
	"ruraldash/internal/backend"
	"ruraldash/internal/config"
	"ruraldash/internal/dashboard"
	"ruraldash/internal/dataaccess"
	"ruraldash/internal/httpapi"
	"ruraldash/internal/metrics"
	"ruraldash/internal/mirror"
	"ruraldash/internal/queue"
	"ruraldash/internal/store"
)

// App owns every component and closes them in reverse order.
type App struct {
	Config    config.App
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	Mirror    *mirror.Mirror
	Layer     *dataaccess.Layer
	Dashboard *dashboard.Service
	Queue     queue.Queue
	Signer    *auth.Signer

	redis   *store.Redis
	db      *store.DB
	checks  map[string]func(context.Context) bool
	closers []func() error
}

// New connects the mirror backend and the queue and builds the service graph.
// It does not touch the REST backend; call Probe for that.
func New(ctx context.Context, cfg config.App, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
		Signer:  auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL),
		checks:  map[string]func(context.Context) bool{},
	}

	kv, err := a.openKV(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	policy, err := mirror.ParsePolicy(cfg.MirrorPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Mirror = mirror.New(kv, cfg.MirrorPrefix, policy, log.Named("mirror"))
	a.closers = append(a.closers, a.Mirror.Close)

	if a.Queue, err = a.openQueue(ctx); err != nil {
		a.Close()
		return nil, err
	}

	opts := []dataaccess.Option{
		dataaccess.WithLogger(log.Named("dataaccess")),
		dataaccess.WithMetrics(a.Metrics),
		dataaccess.WithProbeTimeout(cfg.ProbeTimeout),
	}
	var b dataaccess.Backend
	if cfg.OfflineMode {
		opts = append(opts, dataaccess.StartOffline())
		log.Info("offline mode forced by configuration")
	} else {
		b = backend.New(cfg.APIBaseURL, cfg.HealthPath, cfg.HTTPTimeout)
	}
	a.Layer = dataaccess.New(b, a.Mirror, opts...)
	a.Dashboard = dashboard.NewService(a.Layer, a.Mirror, log.Named("dashboard"), a.Metrics)
	return a, nil
}

func (a *App) openKV(ctx context.Context) (mirror.KV, error) {
	switch a.Config.MirrorBackend {
	case "memory":
		return mirror.NewMemory(), nil
	case "redis":
		r, err := a.sharedRedis(ctx)
		if err != nil {
			return nil, err
		}
		return mirror.NewRedis(r.Client), nil
	case "sqlite", "postgres":
		var (
			db  *store.DB
			err error
		)
		if a.Config.MirrorBackend == "sqlite" {
			db, err = store.NewSQLite(ctx, a.Config.SQLitePath)
		} else {
			db, err = store.NewPostgres(ctx, a.Config.DatabaseURL)
		}
		if err != nil {
			return nil, fmt.Errorf("mirror database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		a.checks["db"] = func(ctx context.Context) bool { return db.Client.PingContext(ctx) == nil }
		return mirror.NewSQL(ctx, db.Client)
	}
	return nil, fmt.Errorf("unknown mirror backend %q", a.Config.MirrorBackend)
}

func (a *App) openQueue(ctx context.Context) (queue.Queue, error) {
	if a.Config.QueueBackend == "redis" {
		r, err := a.sharedRedis(ctx)
		if err != nil {
			return nil, err
		}
		return queue.NewRedisQueue(r.Client, queue.DefaultRedisKey), nil
	}
	return queue.NewInMemory(1), nil
}

func (a *App) sharedRedis(ctx context.Context) (*store.Redis, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	r, err := store.NewRedis(ctx, a.Config.RedisAddr)
	if err != nil {
		return nil, err
	}
	a.redis = r
	a.closers = append(a.closers, r.Close)
	a.checks["redis"] = r.Healthy
	return r, nil
}

// Probe checks the REST backend once; a failure switches to offline mode
// for good.
func (a *App) Probe(ctx context.Context) bool {
	return a.Layer.Probe(ctx)
}

// Router builds the HTTP API on top of the app.
func (a *App) Router() *gin.Engine {
	return httpapi.NewRouter(httpapi.Config{
		Data:            a.Layer,
		Dashboard:       a.Dashboard,
		Queue:           a.Queue,
		Signer:          a.Signer,
		Metrics:         a.Metrics,
		Log:             a.Log.Named("http"),
		Checks:          a.checks,
		RateLimitPerMin: a.Config.RateLimitPerMin,
		CORSOrigins:     a.Config.CORSOrigins,
	})
}

// Refresher builds the background refresher for this app's queue.
func (a *App) Refresher(interval time.Duration) *Refresher {
	return NewRefresher(a.Dashboard, a.Queue, interval, a.Log.Named("refresher"))
}

// Reloader builds the mirror follower used when another process refreshes.
func (a *App) Reloader(interval time.Duration) *Reloader {
	return NewReloader(a.Dashboard, interval, a.Log.Named("reloader"))
}

// Background returns the loop that keeps this process's dashboard current:
// the refresher when jobs stay in process, otherwise a mirror reloader.
func (a *App) Background() Runner {
	if a.Config.QueueBackend == "memory" {
		return a.Refresher(a.Config.RefreshInterval)
	}
	return a.Reloader(a.Config.StateReloadInterval)
}

// Close releases everything New opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
