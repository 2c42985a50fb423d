// Package mirror is the local persisted copy of backend collections used when
// the backend cannot be reached.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ruraldash/internal/record"
	"ruraldash/internal/resource"
)

// Policy decides what happens when a record lands in a collection.
type Policy int

const (
	// Upsert replaces a record carrying the same id, otherwise appends.
	Upsert Policy = iota
	// Append always appends, keeping every historical copy.
	Append
)

// ParsePolicy maps the config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "upsert":
		return Upsert, nil
	case "append":
		return Append, nil
	}
	return Upsert, fmt.Errorf("unknown mirror policy %q", s)
}

func (p Policy) String() string {
	if p == Append {
		return "append"
	}
	return "upsert"
}

const lastSyncName = "last_sync"

// Mirror stores one JSON-encoded collection per resource kind on top of a KV.
type Mirror struct {
	kv     KV
	prefix string
	policy Policy
	log    *zap.Logger

	// serializes read-modify-write cycles
	mu sync.Mutex
}

// New builds a Mirror. A nil logger discards output.
func New(kv KV, prefix string, policy Policy, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{kv: kv, prefix: prefix, policy: policy, log: log}
}

// Key returns the storage key for kind.
func (m *Mirror) Key(kind resource.Kind) string {
	return kind.Key(m.prefix)
}

// Load returns the stored collection for kind. Missing, unreadable or corrupt
// entries all come back as an empty collection.
func (m *Mirror) Load(ctx context.Context, kind resource.Kind) record.Collection {
	coll, _ := m.load(ctx, kind)
	return coll
}

func (m *Mirror) load(ctx context.Context, kind resource.Kind) (record.Collection, error) {
	key := m.Key(kind)
	raw, err := m.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return record.Collection{}, nil
	}
	if err != nil {
		m.log.Error("mirror read failed", zap.String("key", key), zap.Error(err))
		return record.Collection{}, err
	}
	coll, err := record.Decode(raw)
	if err != nil {
		// corrupt payloads are treated as no data and get overwritten on the next store
		m.log.Error("mirror entry corrupt, treating as empty", zap.String("key", key), zap.Error(err))
		return record.Collection{}, nil
	}
	return coll, nil
}

// Store adds rec to the collection for kind according to the policy.
func (m *Mirror) Store(ctx context.Context, kind resource.Kind, rec record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, err := m.load(ctx, kind)
	if err != nil {
		return fmt.Errorf("load %s: %w", m.Key(kind), err)
	}
	coll = m.apply(coll, rec)
	return m.put(ctx, kind, coll)
}

func (m *Mirror) apply(coll record.Collection, rec record.Record) record.Collection {
	if m.policy == Upsert {
		if id, ok := rec.ID(); ok {
			want := record.IDKey(id)
			for i, existing := range coll {
				if other, ok := existing.ID(); ok && record.IDKey(other) == want {
					coll[i] = rec
					return coll
				}
			}
		}
	}
	return append(coll, rec)
}

// Replace overwrites the whole collection for kind.
func (m *Mirror) Replace(ctx context.Context, kind resource.Kind, coll record.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(ctx, kind, coll)
}

func (m *Mirror) put(ctx context.Context, kind resource.Kind, coll record.Collection) error {
	raw, err := record.Encode(coll)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Key(kind), err)
	}
	if err := m.kv.Put(ctx, m.Key(kind), raw); err != nil {
		return fmt.Errorf("write %s: %w", m.Key(kind), err)
	}
	return nil
}

// LastSync returns when a full refresh last succeeded.
func (m *Mirror) LastSync(ctx context.Context) (time.Time, bool) {
	raw, err := m.kv.Get(ctx, m.prefix+lastSyncName)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.Warn("reading last sync failed", zap.Error(err))
		}
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		m.log.Warn("last sync timestamp corrupt", zap.String("value", string(raw)))
		return time.Time{}, false
	}
	return t, true
}

// MarkSynced records t as the last successful refresh.
func (m *Mirror) MarkSynced(ctx context.Context, t time.Time) error {
	return m.kv.Put(ctx, m.prefix+lastSyncName, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// Close releases the KV.
func (m *Mirror) Close() error {
	return m.kv.Close()
}
