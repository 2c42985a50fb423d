package mirror

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"ruraldash/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	getEntrySQL    = `SELECT payload FROM mirror_entries WHERE mirror_key = ?`
	upsertEntrySQL = `
	INSERT INTO mirror_entries (mirror_key, payload, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT (mirror_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
)

// SQL stores mirror entries in one table; works on SQLite and Postgres.
type SQL struct {
	db *sqlx.DB
}

// NewSQL runs pending migrations and returns the KV. The db is owned by the caller.
func NewSQL(ctx context.Context, db *sqlx.DB) (*SQL, error) {
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}
	return &SQL{db: db}, nil
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	var dialect goose.Dialect
	switch db.DriverName() {
	case store.DriverSQLite:
		dialect = goose.DialectSQLite3
	case store.DriverPostgres:
		dialect = goose.DialectPostgres
	default:
		return fmt.Errorf("unsupported mirror driver %q", db.DriverName())
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Get returns the stored payload.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, s.db.Rebind(getEntrySQL), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// Put inserts or replaces the payload for key.
func (s *SQL) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertEntrySQL), key, string(value), time.Now().UTC())
	return err
}

// Close leaves the shared db open.
func (s *SQL) Close() error { return nil }
