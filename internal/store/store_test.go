package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsync/propsync/internal/store"
)

func TestOpen_CreatesSchemaAndSeedsAdmin(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "estate.db"))
	require.NoError(t, err)
	defer s.Close()

	var isAdmin bool
	err = s.DB().QueryRow(`SELECT is_admin FROM users WHERE username = 'admin'`).Scan(&isAdmin)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestOpen_IdempotentSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estate.db")

	s1, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var n int
	require.NoError(t, s2.DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := store.Open("")
	assert.Error(t, err)
}

func TestWriteLockIndex_SingleRow(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "estate.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.DB().Exec(
		`INSERT INTO sessions (session_id, user_id, username, machine_id, acquired_at, last_heartbeat, is_write_lock)
		 VALUES ('s1', 1, 'admin', 'm1', '2025-01-01T00:00:00.000Z', '2025-01-01T00:00:00.000Z', 1)`)
	require.NoError(t, err)

	// A second write-lock row must violate the partial unique index.
	_, err = s.DB().Exec(
		`INSERT INTO sessions (session_id, user_id, username, machine_id, acquired_at, last_heartbeat, is_write_lock)
		 VALUES ('s2', 1, 'admin', 'm2', '2025-01-01T00:00:00.000Z', '2025-01-01T00:00:00.000Z', 1)`)
	assert.Error(t, err)

	// Read-only session rows are unconstrained.
	_, err = s.DB().Exec(
		`INSERT INTO sessions (session_id, user_id, username, machine_id, acquired_at, last_heartbeat, is_write_lock)
		 VALUES ('s3', 1, 'admin', 'm3', '2025-01-01T00:00:00.000Z', '2025-01-01T00:00:00.000Z', 0)`)
	assert.NoError(t, err)
}

func TestPing(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "estate.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))
}
