// Package session implements the authoritative persistent record of write
// lock ownership. Every mutation goes through a single conditional write
// (an immediate transaction backed by the partial unique index on
// is_write_lock), never a separate check-then-insert.
package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/propsync/propsync/pkg/errclass"
	"github.com/propsync/propsync/pkg/model"
)

// timeLayout is a fixed-width UTC encoding so heartbeat timestamps compare
// correctly as strings inside SQL.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Store performs session-table operations against the shared database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a session store over the shared database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock overrides the time source. Tests use it to age heartbeats
// without sleeping.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// unavailable maps any driver or connectivity failure to the transient
// error class. Callers must never read it as "no lock held".
func unavailable(op string, err error) error {
	return errclass.ErrStoreUnavailable.WithMessagef("%s: %v", op, err)
}

// TryInsertWriteLock atomically inserts a write-lock session if and only
// if none exists. When another holder is present (or wins the race) it
// returns granted=false and that holder; this is an expected outcome, not
// an error.
func (s *Store) TryInsertWriteLock(ctx context.Context, id model.Identity) (bool, *model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, unavailable("begin acquire", err)
	}
	defer tx.Rollback()

	holder, err := scanActive(tx.QueryRowContext(ctx, selectActiveSQL))
	if err != nil {
		return false, nil, unavailable("check holder", err)
	}
	if holder != nil {
		return false, holder, nil
	}

	now := s.now()
	sess := &model.Session{
		SessionID:     uuid.NewString(),
		UserID:        id.UserID,
		Username:      id.Username,
		MachineID:     id.Machine,
		AcquiredAt:    now.UTC().Truncate(time.Millisecond),
		LastHeartbeat: now.UTC().Truncate(time.Millisecond),
		IsWriteLock:   true,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, username, machine_id, acquired_at, last_heartbeat, is_write_lock)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		sess.SessionID, sess.UserID, sess.Username, sess.MachineID,
		formatTime(sess.AcquiredAt), formatTime(sess.LastHeartbeat))
	if err != nil {
		// Unique-index backstop: a concurrent writer slipped in.
		// Surface the winner, not a failure. The transaction must be
		// rolled back first to free the connection for the re-read.
		tx.Rollback()
		if winner, herr := s.GetActiveWriteLock(ctx); herr == nil && winner != nil {
			return false, winner, nil
		}
		return false, nil, unavailable("insert write lock", err)
	}
	if err := tx.Commit(); err != nil {
		if winner, herr := s.GetActiveWriteLock(ctx); herr == nil && winner != nil {
			return false, winner, nil
		}
		return false, nil, unavailable("commit acquire", err)
	}
	return true, sess, nil
}

// RenewHeartbeat refreshes last_heartbeat for the given session. It fails
// with ErrSessionSuperseded when the session no longer exists or no longer
// holds the write lock, the signal that the lock was stolen out from
// under this client.
func (s *Store) RenewHeartbeat(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_heartbeat = ? WHERE session_id = ? AND is_write_lock = 1`,
		formatTime(s.now()), sessionID)
	if err != nil {
		return unavailable("renew heartbeat", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("renew heartbeat", err)
	}
	if n == 0 {
		return errclass.ErrSessionSuperseded.WithMessagef("session %s no longer holds the write lock", sessionID)
	}
	return nil
}

const selectActiveSQL = `
	SELECT session_id, user_id, username, machine_id, acquired_at, last_heartbeat
	FROM sessions WHERE is_write_lock = 1 LIMIT 1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActive(row rowScanner) (*model.Session, error) {
	var sess model.Session
	var acquired, heartbeat string
	err := row.Scan(&sess.SessionID, &sess.UserID, &sess.Username, &sess.MachineID, &acquired, &heartbeat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.AcquiredAt, err = parseTime(acquired); err != nil {
		return nil, err
	}
	if sess.LastHeartbeat, err = parseTime(heartbeat); err != nil {
		return nil, err
	}
	sess.IsWriteLock = true
	return &sess, nil
}

// GetActiveWriteLock returns the current write-lock session, or nil when
// the store is unlocked.
func (s *Store) GetActiveWriteLock(ctx context.Context) (*model.Session, error) {
	sess, err := scanActive(s.db.QueryRowContext(ctx, selectActiveSQL))
	if err != nil {
		return nil, unavailable("get active write lock", err)
	}
	return sess, nil
}

// DeleteSession removes the session row. Deleting an already-gone session
// is a no-op so graceful release stays idempotent.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return unavailable("delete session", err)
	}
	return nil
}

// DeleteSessionIfStale deletes the session only if it still holds the
// write lock and its heartbeat is at or before cutoff. Conditioning the
// delete on the observed session_id keeps two simultaneous reclaimers from
// both "succeeding": the loser's delete matches zero rows.
func (s *Store) DeleteSessionIfStale(ctx context.Context, sessionID string, cutoff time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ? AND is_write_lock = 1 AND last_heartbeat <= ?`,
		sessionID, formatTime(cutoff))
	if err != nil {
		return false, unavailable("reclaim stale session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("reclaim stale session", err)
	}
	return n > 0, nil
}

// ForceDeleteActiveWriteLock removes whichever session currently holds the
// write lock, regardless of identity, and reports the prior holder for the
// audit trail. Returns nil when no lock was held.
func (s *Store) ForceDeleteActiveWriteLock(ctx context.Context) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin force unlock", err)
	}
	defer tx.Rollback()

	holder, err := scanActive(tx.QueryRowContext(ctx, selectActiveSQL))
	if err != nil {
		return nil, unavailable("read holder", err)
	}
	if holder == nil {
		if err := tx.Commit(); err != nil {
			return nil, unavailable("commit force unlock", err)
		}
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE is_write_lock = 1`); err != nil {
		return nil, unavailable("force delete write lock", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit force unlock", err)
	}
	return holder, nil
}
