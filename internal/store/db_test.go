package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "mirror.db")

	db, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.Client.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
	assert.Equal(t, DriverSQLite, db.Client.DriverName())
}

func TestNilCloseIsSafe(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())

	var r *Redis
	assert.NoError(t, r.Close())
	assert.False(t, r.Healthy(context.Background()))
}
