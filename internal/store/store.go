// Package store opens the shared SQLite database and applies the schema.
// The database typically lives on a LAN drive and is shared by every
// client process; all cross-process coordination state lives here.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/propsync/propsync/pkg/errclass"
)

//go:embed schema.sql
var schema string

// Store wraps the shared database handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the shared database at path and
// applies the schema. Transactions are opened with an immediate write
// lock so conditional inserts serialize across processes.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// SQLite serializes writers; a second connection would only queue
	// behind the first and trip busy timeouts under contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.seedUsers(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// seedUsers creates the default administrator on a brand-new store so a
// fresh deployment always has someone who can force-unlock.
func (s *Store) seedUsers() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO users (username, display_name, is_admin, is_active) VALUES (?, ?, 1, 1)`,
		"admin", "Administrator",
	)
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

// DB exposes the underlying handle to the session, auth, and audit layers.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Ping verifies the store is reachable, mapping failures to the transient
// error class so callers never mistake unreachability for "no lock held".
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errclass.ErrStoreUnavailable.WithMessagef("ping: %v", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
