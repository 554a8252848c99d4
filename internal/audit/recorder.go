// Package audit records arbitration decisions in the shared store so
// administrators can reconstruct who held, released, reclaimed, or forced
// the write lock, and when.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/propsync/propsync/pkg/errclass"
	"github.com/propsync/propsync/pkg/model"
)

// Action names an auditable arbitration event.
type Action string

const (
	ActionGranted       Action = "lock.granted"
	ActionDenied        Action = "lock.denied"
	ActionReleased      Action = "lock.released"
	ActionReclaimed     Action = "lock.reclaimed"
	ActionForceUnlock   Action = "lock.force_unlock"
	ActionTheftDetected Action = "lock.theft_detected"
)

// Event is one audit record: who did what to whom, and when.
type Event struct {
	Actor        model.Identity `json:"actor"`
	Action       Action         `json:"action"`
	TargetHolder string         `json:"target_holder,omitempty"`
	Detail       string         `json:"detail,omitempty"`
	Time         time.Time      `json:"time"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// StoreRecorder appends events to the audit_log table in the shared store.
type StoreRecorder struct {
	db  *sql.DB
	now func() time.Time
}

// NewStoreRecorder creates a recorder over the shared database handle.
func NewStoreRecorder(db *sql.DB) *StoreRecorder {
	return &StoreRecorder{db: db, now: time.Now}
}

// Record implements Recorder.
func (r *StoreRecorder) Record(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (actor_user_id, actor_username, action, target_holder, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Actor.UserID, ev.Actor.Username, string(ev.Action), ev.TargetHolder, ev.Detail,
		ev.Time.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errclass.ErrStoreUnavailable.WithMessagef("record audit event: %v", err)
	}
	return nil
}

// Tail returns the most recent n events, newest first.
func (r *StoreRecorder) Tail(ctx context.Context, n int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT actor_user_id, actor_username, action, target_holder, detail, created_at
		 FROM audit_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, errclass.ErrStoreUnavailable.WithMessagef("read audit log: %v", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var action, created string
		if err := rows.Scan(&ev.Actor.UserID, &ev.Actor.Username, &action, &ev.TargetHolder, &ev.Detail, &created); err != nil {
			return nil, errclass.ErrStoreUnavailable.WithMessagef("scan audit row: %v", err)
		}
		ev.Action = Action(action)
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			ev.Time = ts
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errclass.ErrStoreUnavailable.WithMessagef("read audit log: %v", err)
	}
	return events, nil
}

// Nop discards events. Used where auditing is not wired, e.g. unit tests.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) error { return nil }
