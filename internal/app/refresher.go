package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ruraldash/internal/dashboard"
	"ruraldash/internal/queue"
)

// Runner is a background loop that stops when its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// Refresher reloads the dashboard on queued refresh jobs and on a timer.
type Refresher struct {
	dash     *dashboard.Service
	queue    queue.Queue
	interval time.Duration
	log      *zap.Logger
}

// NewRefresher builds a Refresher. A non-positive interval disables the timer.
func NewRefresher(dash *dashboard.Service, q queue.Queue, interval time.Duration, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{dash: dash, queue: q, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	jobs, err := r.queue.Consume(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for job := range jobs {
			if job.Type != queue.JobRefresh {
				r.log.Warn("ignoring unknown job", zap.String("type", job.Type), zap.String("job_id", job.ID))
				continue
			}
			r.log.Info("processing refresh", zap.String("job_id", job.ID), zap.String("reason", job.Reason))
			r.dash.Refresh(ctx)
		}
		return nil
	})
	if r.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(r.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					r.dash.Refresh(ctx)
				}
			}
		})
	}
	return g.Wait()
}

// Reloader keeps a process's dashboard state in step with a mirror that
// another process refreshes.
type Reloader struct {
	dash     *dashboard.Service
	interval time.Duration
	log      *zap.Logger
}

// NewReloader builds a Reloader; interval must be positive.
func NewReloader(dash *dashboard.Service, interval time.Duration, log *zap.Logger) *Reloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reloader{dash: dash, interval: interval, log: log}
}

// Run reloads the state from the mirror on every tick until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return errors.New("reload interval must be positive")
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.dash.LoadCached(ctx)
			r.log.Debug("dashboard state reloaded from mirror")
		}
	}
}
