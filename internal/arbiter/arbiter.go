// Package arbiter is the decision engine for write-lock ownership:
// acquire, release, heartbeat-theft detection, and administrative
// force-unlock. It is the only component that mutates the session table
// and the marker, and it does so exclusively through the store's atomic
// conditional primitives; the store's physical commit order is the one
// and only tie-break between racing clients.
package arbiter

import (
	"context"
	"errors"
	"time"

	"github.com/propsync/propsync/internal/audit"
	"github.com/propsync/propsync/internal/auth"
	"github.com/propsync/propsync/internal/marker"
	"github.com/propsync/propsync/pkg/errclass"
	"github.com/propsync/propsync/pkg/logging"
	"github.com/propsync/propsync/pkg/model"
)

// SessionStore is the authoritative persistence contract the arbiter
// decides against.
type SessionStore interface {
	TryInsertWriteLock(ctx context.Context, id model.Identity) (bool, *model.Session, error)
	RenewHeartbeat(ctx context.Context, sessionID string) error
	GetActiveWriteLock(ctx context.Context) (*model.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteSessionIfStale(ctx context.Context, sessionID string, cutoff time.Time) (bool, error)
	ForceDeleteActiveWriteLock(ctx context.Context) (*model.Session, error)
}

// Decision classifies an Acquire outcome.
type Decision string

const (
	// Granted: the caller now holds the write lock.
	Granted Decision = "granted"
	// DeniedActive: a live holder exists; its identity is surfaced for display.
	DeniedActive Decision = "denied_active"
	// DeniedRaceLost: no live holder was observed, but another client won
	// the conditional insert. Expected under contention.
	DeniedRaceLost Decision = "denied_race_lost"
)

// Outcome is the result of an Acquire.
type Outcome struct {
	Decision Decision
	// Session is the caller's new session when Decision is Granted.
	Session *model.Session
	// Holder is the current holder when the lock was denied.
	Holder *model.Session
}

// Err converts a denial into its error class for callers that prefer
// error semantics. Granted yields nil.
func (o Outcome) Err() error {
	switch o.Decision {
	case DeniedActive:
		if o.Holder != nil {
			return errclass.ErrLockHeld.WithMessagef("write lock held by %s", o.Holder.HolderDisplay())
		}
		return errclass.ErrLockHeld
	case DeniedRaceLost:
		return errclass.ErrRaceLost.WithMessage("another client won the acquisition race")
	default:
		return nil
	}
}

// Options tunes the arbiter's transient-error retry behavior.
type Options struct {
	// MaxAttempts bounds retries of store operations that fail with
	// ErrStoreUnavailable. Minimum 1.
	MaxAttempts int
	// Backoff is the base delay between attempts, scaled linearly.
	Backoff time.Duration
	Logger  *logging.Logger
	Clock   func() time.Time
}

// Arbiter coordinates lock ownership across client processes.
type Arbiter struct {
	sessions SessionStore
	marker   *marker.File
	authz    auth.Authorizer
	recorder audit.Recorder
	policy   model.LockPolicy

	maxAttempts int
	backoff     time.Duration
	log         *logging.Logger
	now         func() time.Time
}

// New creates an arbiter. The recorder may be audit.Nop{}; the marker is
// required (the arbiter keeps it reconciled after every decision).
func New(sessions SessionStore, mk *marker.File, authz auth.Authorizer, recorder audit.Recorder, policy model.LockPolicy, opts Options) *Arbiter {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(logging.LevelInfo)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Arbiter{
		sessions:    sessions,
		marker:      mk,
		authz:       authz,
		recorder:    recorder,
		policy:      policy,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		log:         opts.Logger,
		now:         opts.Clock,
	}
}

// withRetry retries fn while it fails with the transient store error,
// backing off linearly between attempts. Any other error (including the
// expected-outcome classes) passes straight through.
func (a *Arbiter) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, errclass.ErrStoreUnavailable) {
			return err
		}
		if attempt >= a.maxAttempts {
			return err
		}
		a.log.Warn("store unavailable, retrying", map[string]any{
			"op": op, "attempt": attempt, "error": err.Error(),
		})
		select {
		case <-ctx.Done():
			return errclass.ErrStoreUnavailable.WithMessagef("%s: %v", op, ctx.Err())
		case <-time.After(a.backoff * time.Duration(attempt)):
		}
	}
}

func (a *Arbiter) record(ctx context.Context, ev audit.Event) {
	if ev.Time.IsZero() {
		ev.Time = a.now()
	}
	if err := a.recorder.Record(ctx, ev); err != nil {
		a.log.ErrorErr("audit record failed", err, map[string]any{"action": string(ev.Action)})
	}
}

// reconcile pulls the marker back in line with the authoritative session
// row. Marker trouble is never fatal to arbitration.
func (a *Arbiter) reconcile(ctx context.Context) {
	holder, err := a.sessions.GetActiveWriteLock(ctx)
	if err != nil {
		a.log.Warn("marker reconcile skipped: store unavailable")
		return
	}
	a.marker.Reconcile(holder)
}

// Acquire attempts to take the write lock for the given identity.
//
// A live holder yields DeniedActive. A stale holder (heartbeat older than
// the staleness timeout) is reclaimed with a delete conditioned on the
// observed session id, so two simultaneous reclaimers cannot both
// succeed; the reclaim is followed immediately by the caller's own
// conditional insert. Losing either race yields DeniedRaceLost.
func (a *Arbiter) Acquire(ctx context.Context, id model.Identity) (Outcome, error) {
	var holder *model.Session
	err := a.withRetry(ctx, "get active write lock", func() error {
		var err error
		holder, err = a.sessions.GetActiveWriteLock(ctx)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	now := a.now()
	if holder != nil {
		if !holder.IsStale(now, a.policy.StalenessTimeout) {
			a.record(ctx, audit.Event{
				Actor: id, Action: audit.ActionDenied,
				TargetHolder: holder.HolderDisplay(),
				Detail:       "lock held",
			})
			a.marker.Reconcile(holder)
			return Outcome{Decision: DeniedActive, Holder: holder}, nil
		}

		// Stale holder: reclaim conditioned on the session we observed.
		cutoff := now.Add(-a.policy.StalenessTimeout)
		var reclaimed bool
		err := a.withRetry(ctx, "reclaim stale session", func() error {
			var err error
			reclaimed, err = a.sessions.DeleteSessionIfStale(ctx, holder.SessionID, cutoff)
			return err
		})
		if err != nil {
			return Outcome{}, err
		}
		if reclaimed {
			a.log.Info("reclaimed stale write lock", map[string]any{
				"stale_session": holder.SessionID,
				"stale_holder":  holder.HolderDisplay(),
			})
			a.record(ctx, audit.Event{
				Actor: id, Action: audit.ActionReclaimed,
				TargetHolder: holder.HolderDisplay(),
				Detail:       "heartbeat timed out",
			})
		}
		// Not reclaimed means a concurrent reclaimer got there first;
		// fall through and contend on the insert like everyone else.
	}

	var granted bool
	var winner *model.Session
	err = a.withRetry(ctx, "insert write lock", func() error {
		var err error
		granted, winner, err = a.sessions.TryInsertWriteLock(ctx, id)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	if granted {
		a.record(ctx, audit.Event{Actor: id, Action: audit.ActionGranted})
		a.marker.Reconcile(winner)
		a.log.Info("write lock granted", map[string]any{"session_id": winner.SessionID})
		return Outcome{Decision: Granted, Session: winner}, nil
	}

	detail := "lost insert race"
	var target string
	if winner != nil {
		target = winner.HolderDisplay()
	}
	a.record(ctx, audit.Event{
		Actor: id, Action: audit.ActionDenied,
		TargetHolder: target, Detail: detail,
	})
	a.marker.Reconcile(winner)
	return Outcome{Decision: DeniedRaceLost, Holder: winner}, nil
}

// Release gracefully deletes the caller's session. Idempotent: releasing
// an already-reclaimed or already-released session succeeds and never
// deletes another session's row.
func (a *Arbiter) Release(ctx context.Context, actor model.Identity, sessionID string) error {
	err := a.withRetry(ctx, "release session", func() error {
		return a.sessions.DeleteSession(ctx, sessionID)
	})
	if err != nil {
		return err
	}
	a.record(ctx, audit.Event{Actor: actor, Action: audit.ActionReleased})
	a.reconcile(ctx)
	a.log.Info("write lock released", map[string]any{"session_id": sessionID})
	return nil
}

// RenewOrDetectTheft refreshes the heartbeat for the caller's session.
// ErrSessionSuperseded means the lock was reclaimed out from under the
// caller, who must demote itself immediately rather than keep writing.
func (a *Arbiter) RenewOrDetectTheft(ctx context.Context, actor model.Identity, sessionID string) error {
	err := a.withRetry(ctx, "renew heartbeat", func() error {
		return a.sessions.RenewHeartbeat(ctx, sessionID)
	})
	if errors.Is(err, errclass.ErrSessionSuperseded) {
		a.record(ctx, audit.Event{
			Actor: actor, Action: audit.ActionTheftDetected,
			Detail: "session " + sessionID + " no longer held",
		})
	}
	return err
}

// ForceUnlock unconditionally removes the active write lock. Only callers
// the external authorization collaborator approves may use it; every use
// is audited with the previous holder's identity. Returns the prior
// holder, or nil when nothing was locked.
func (a *Arbiter) ForceUnlock(ctx context.Context, admin model.Identity) (*model.Session, error) {
	allowed, err := a.authz.CanForceUnlock(ctx, admin)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errclass.ErrUnauthorized.WithMessagef("%s may not force-unlock", admin.Display())
	}

	var prior *model.Session
	err = a.withRetry(ctx, "force unlock", func() error {
		var err error
		prior, err = a.sessions.ForceDeleteActiveWriteLock(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var target string
	if prior != nil {
		target = prior.HolderDisplay()
	}
	a.record(ctx, audit.Event{
		Actor: admin, Action: audit.ActionForceUnlock,
		TargetHolder: target,
	})
	a.reconcile(ctx)
	a.log.Warn("write lock force-unlocked", map[string]any{
		"admin": admin.Display(), "previous_holder": target,
	})
	return prior, nil
}

// Status reports the current holder, marker presence, and whether the
// asking identity could force-unlock. Read-only.
func (a *Arbiter) Status(ctx context.Context, asking model.Identity) (model.LockStatus, error) {
	var holder *model.Session
	err := a.withRetry(ctx, "get active write lock", func() error {
		var err error
		holder, err = a.sessions.GetActiveWriteLock(ctx)
		return err
	})
	if err != nil {
		return model.LockStatus{}, err
	}

	canForce, err := a.authz.CanForceUnlock(ctx, asking)
	if err != nil {
		return model.LockStatus{}, err
	}
	return model.LockStatus{
		IsLocked:       holder != nil,
		Holder:         holder,
		MarkerPresent:  a.marker.Exists(),
		CanForceUnlock: canForce,
	}, nil
}

// Policy exposes the timing parameters the arbiter operates under.
func (a *Arbiter) Policy() model.LockPolicy { return a.policy }
