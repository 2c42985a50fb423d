// Package dataaccess reads and writes backend collections, degrading to the
// local mirror whenever the backend cannot serve a request.
//
// Neither Read nor Write returns an error: transport failures are logged,
// counted, and absorbed. Callers learn where data came from through the
// Source field on each result.
package dataaccess

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ruraldash/internal/metrics"
	"ruraldash/internal/mirror"
	"ruraldash/internal/record"
	"ruraldash/internal/resource"
)

// Source says who served a result.
type Source string

const (
	SourceLive   Source = "live"
	SourceMirror Source = "mirror"
)

// Backend is the remote REST API.
type Backend interface {
	List(ctx context.Context, endpoint string) (record.Collection, error)
	Create(ctx context.Context, endpoint string, rec record.Record) (record.Record, error)
	Health(ctx context.Context) error
}

// ReadResult is a collection plus where it came from.
type ReadResult struct {
	Records record.Collection `json:"records"`
	Source  Source            `json:"source"`
}

// WriteResult is the stored record plus where it went.
type WriteResult struct {
	Record record.Record `json:"record"`
	Source Source        `json:"source"`
}

// Layer is safe for concurrent use.
type Layer struct {
	backend      Backend
	mirror       *mirror.Mirror
	metrics      *metrics.Metrics
	log          *zap.Logger
	now          func() time.Time
	probeTimeout time.Duration

	offline atomic.Bool
	lastID  atomic.Int64
}

// Option configures a Layer.
type Option func(*Layer)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Layer) { l.log = log }
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Layer) { l.metrics = m }
}

// WithClock overrides time.Now, used for offline ids.
func WithClock(now func() time.Time) Option {
	return func(l *Layer) { l.now = now }
}

// WithProbeTimeout bounds the startup connectivity probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(l *Layer) { l.probeTimeout = d }
}

// StartOffline pins the layer to the mirror from the start.
func StartOffline() Option {
	return func(l *Layer) { l.offline.Store(true) }
}

// New builds a layer. A nil backend means the layer starts offline.
func New(b Backend, m *mirror.Mirror, opts ...Option) *Layer {
	l := &Layer{
		backend:      b,
		mirror:       m,
		log:          zap.NewNop(),
		now:          time.Now,
		probeTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	if b == nil {
		l.offline.Store(true)
	}
	if l.offline.Load() && l.metrics != nil {
		l.metrics.Offline.Set(1)
	}
	return l
}

// Offline reports whether the layer has stopped using the network.
func (l *Layer) Offline() bool {
	return l.offline.Load()
}

// GoOffline switches to offline mode for the rest of the process lifetime.
// There is no way back.
func (l *Layer) GoOffline(reason string) {
	if !l.offline.CompareAndSwap(false, true) {
		return
	}
	l.log.Warn("switching to offline mode", zap.String("reason", reason))
	if l.metrics != nil {
		l.metrics.Offline.Set(1)
	}
}

// Probe checks backend connectivity once and goes offline if it fails.
// It reports whether the layer is online afterwards.
func (l *Layer) Probe(ctx context.Context) bool {
	if l.Offline() {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()

	if err := l.backend.Health(ctx); err != nil {
		l.log.Warn("backend connection failed", zap.Error(err))
		l.GoOffline("connectivity probe failed")
		return false
	}
	l.log.Info("connected to backend")
	return true
}

// Read returns the collection behind endpoint, from the backend when possible.
func (l *Layer) Read(ctx context.Context, endpoint string) ReadResult {
	kind := resource.Resolve(endpoint)

	if !l.Offline() {
		coll, err := l.backend.List(ctx, endpoint)
		if err == nil {
			l.countRead(kind, SourceLive)
			return ReadResult{Records: coll, Source: SourceLive}
		}
		l.log.Warn("falling back to mirror",
			zap.String("op", "read"),
			zap.String("endpoint", endpoint),
			zap.String("key", l.mirror.Key(kind)),
			zap.Error(err))
		l.countFallback(kind, "read")
	}

	l.countRead(kind, SourceMirror)
	return ReadResult{Records: l.mirror.Load(ctx, kind), Source: SourceMirror}
}

// Write stores rec through the backend when possible and keeps a mirrored
// copy either way.
func (l *Layer) Write(ctx context.Context, endpoint string, rec record.Record) WriteResult {
	kind := resource.Resolve(endpoint)

	if !l.Offline() {
		created, err := l.backend.Create(ctx, endpoint, rec)
		if err == nil {
			serverID, _ := created.ID()
			l.store(ctx, kind, l.tag(rec, serverID))
			l.countWrite(kind, SourceLive)
			return WriteResult{Record: created, Source: SourceLive}
		}
		l.log.Warn("saving to mirror for offline mode",
			zap.String("op", "write"),
			zap.String("endpoint", endpoint),
			zap.String("key", l.mirror.Key(kind)),
			zap.Error(err))
		l.countFallback(kind, "write")
	}

	tagged := l.tag(rec, nil)
	l.store(ctx, kind, tagged)
	l.countWrite(kind, SourceMirror)
	return WriteResult{Record: tagged, Source: SourceMirror}
}

func (l *Layer) tag(rec record.Record, id any) record.Record {
	if id == nil {
		if _, ok := rec.ID(); !ok {
			id = l.nextID()
		}
	}
	return record.TagOffline(rec, id, l.now())
}

// nextID derives an id from the clock in milliseconds, bumped past the last
// one handed out so two writes in the same millisecond never collide.
func (l *Layer) nextID() int64 {
	for {
		last := l.lastID.Load()
		id := l.now().UnixMilli()
		if id <= last {
			id = last + 1
		}
		if l.lastID.CompareAndSwap(last, id) {
			return id
		}
	}
}

func (l *Layer) store(ctx context.Context, kind resource.Kind, rec record.Record) {
	// a caller giving up must not drop a queued write
	if err := l.mirror.Store(context.WithoutCancel(ctx), kind, rec); err != nil {
		l.log.Error("mirror write failed", zap.String("key", l.mirror.Key(kind)), zap.Error(err))
	}
}

func (l *Layer) countRead(kind resource.Kind, src Source) {
	if l.metrics != nil {
		l.metrics.Reads.WithLabelValues(kind.String(), string(src)).Inc()
	}
}

func (l *Layer) countWrite(kind resource.Kind, src Source) {
	if l.metrics != nil {
		l.metrics.Writes.WithLabelValues(kind.String(), string(src)).Inc()
	}
}

func (l *Layer) countFallback(kind resource.Kind, op string) {
	if l.metrics != nil {
		l.metrics.Fallbacks.WithLabelValues(kind.String(), op).Inc()
	}
}
