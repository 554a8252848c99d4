// Package mode owns the per-client access-mode state machine. It drives
// the arbiter on startup and on every retry, starts and stops the
// heartbeat emitter around WriteMode, and surfaces the current mode (plus
// the blocking holder's identity) to the rest of the application. CRUD
// code treats a transition into read-only as information to display, not
// an error to propagate.
package mode

import (
	"context"
	"sync"
	"time"

	"github.com/propsync/propsync/internal/arbiter"
	"github.com/propsync/propsync/internal/heartbeat"
	"github.com/propsync/propsync/pkg/logging"
	"github.com/propsync/propsync/pkg/model"
)

// Arbiter is the slice of the lock arbiter the controller consumes.
type Arbiter interface {
	Acquire(ctx context.Context, id model.Identity) (arbiter.Outcome, error)
	Release(ctx context.Context, actor model.Identity, sessionID string) error
	RenewOrDetectTheft(ctx context.Context, actor model.Identity, sessionID string) error
}

// Reason explains a mode transition to subscribers.
type Reason string

const (
	ReasonAttempt       Reason = "attempt"
	ReasonGranted       Reason = "granted"
	ReasonDenied        Reason = "denied"
	ReasonLockLost      Reason = "lock_lost"
	ReasonYielded       Reason = "yielded"
	ReasonStoreDegraded Reason = "store_degraded"
	ReasonShutdown      Reason = "shutdown"
)

// Transition is delivered to subscribers on every mode change. Holder is
// set when entering read-only because another client owns the lock.
type Transition struct {
	From   model.Mode
	To     model.Mode
	Reason Reason
	Holder *model.Session
}

// Controller runs the acquisition loop for one client process.
type Controller struct {
	arb    Arbiter
	id     model.Identity
	policy model.LockPolicy
	log    *logging.Logger

	mu      sync.Mutex
	state   model.Mode
	session *model.Session
	holder  *model.Session
	subs    []func(Transition)

	retryCh chan struct{}
	lostCh  chan struct{}
	yieldCh chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	// releaseTimeout bounds the final graceful release during shutdown,
	// which cannot reuse the already-cancelled run context.
	releaseTimeout time.Duration
}

// NewController creates a controller in the Unlocked state.
func NewController(arb Arbiter, id model.Identity, policy model.LockPolicy, log *logging.Logger) *Controller {
	if log == nil {
		log = logging.New(logging.LevelInfo)
	}
	return &Controller{
		arb:            arb,
		id:             id,
		policy:         policy,
		log:            log,
		state:          model.ModeUnlocked,
		retryCh:        make(chan struct{}, 1),
		lostCh:         make(chan struct{}, 1),
		yieldCh:        make(chan struct{}, 1),
		releaseTimeout: 10 * time.Second,
	}
}

// CurrentMode returns the client's current access mode.
func (c *Controller) CurrentMode() model.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Holder returns the identity blocking this client, when in read-only
// because another client holds the lock.
func (c *Controller) Holder() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holder
}

// Session returns this client's own write-lock session while in WriteMode.
func (c *Controller) Session() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Subscribe registers a callback fired on every mode transition. The
// callback runs on the controller's goroutine and must not block.
func (c *Controller) Subscribe(fn func(Transition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Yield gives up the write lock without stopping the controller. The
// session is released and the client demotes to read-only; acquisition
// resumes on the normal retry cadence. No-op outside WriteMode.
func (c *Controller) Yield() {
	select {
	case c.yieldCh <- struct{}{}:
	default:
	}
}

// RequestRetry makes a read-only client retry acquisition immediately,
// e.g. on a manual user action or a marker-watcher signal. Coalesces.
func (c *Controller) RequestRetry() {
	select {
	case c.retryCh <- struct{}{}:
	default:
	}
}

func (c *Controller) transition(to model.Mode, reason Reason, holder *model.Session, sess *model.Session) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.holder = holder
	c.session = sess
	subs := make([]func(Transition), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	if from == to && reason != ReasonLockLost {
		return
	}
	tr := Transition{From: from, To: to, Reason: reason, Holder: holder}
	c.log.Info("mode transition", map[string]any{
		"from": string(from), "to": string(to), "reason": string(reason),
	})
	for _, fn := range subs {
		fn(tr)
	}
}

// Start launches the acquisition loop. The controller stops when ctx is
// cancelled or Shutdown is called.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(runCtx)
	}()
}

// Shutdown cancels the loop and waits for the final graceful release.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.transition(model.ModeUnlocked, ReasonShutdown, nil, nil)
			return
		}

		c.transition(model.ModeAcquiring, ReasonAttempt, nil, nil)
		out, err := c.arb.Acquire(ctx, c.id)
		if err != nil {
			// Retries inside the arbiter are exhausted; degrade to a
			// read-only status display instead of crashing.
			c.log.ErrorErr("acquire failed, degraded connectivity", err)
			c.transition(model.ModeReadOnly, ReasonStoreDegraded, nil, nil)
			c.waitRetry(ctx)
			continue
		}

		switch out.Decision {
		case arbiter.Granted:
			if !c.holdWriteMode(ctx, out.Session) {
				return
			}
		default:
			c.transition(model.ModeReadOnly, ReasonDenied, out.Holder, nil)
			c.waitRetry(ctx)
		}
	}
}

// holdWriteMode runs WriteMode until the lock is lost or the context is
// cancelled. Returns false when the loop should exit (shutdown).
func (c *Controller) holdWriteMode(ctx context.Context, sess *model.Session) bool {
	// Drain stale signals from a previous tenure.
	select {
	case <-c.lostCh:
	default:
	}
	select {
	case <-c.yieldCh:
	default:
	}

	emitter := heartbeat.New(c.policy.HeartbeatInterval, func(hbCtx context.Context) error {
		return c.arb.RenewOrDetectTheft(hbCtx, c.id, sess.SessionID)
	}, func(error) {
		select {
		case c.lostCh <- struct{}{}:
		default:
		}
	}, c.log)

	c.transition(model.ModeWrite, ReasonGranted, nil, sess)
	emitter.Start(ctx)

	select {
	case <-ctx.Done():
		// Graceful shutdown: the emitter must not fire after this point,
		// or it could resurrect the session we are about to delete.
		emitter.Stop()
		releaseCtx, cancel := context.WithTimeout(context.Background(), c.releaseTimeout)
		defer cancel()
		if err := c.arb.Release(releaseCtx, c.id, sess.SessionID); err != nil {
			c.log.ErrorErr("graceful release failed", err)
		}
		c.transition(model.ModeUnlocked, ReasonShutdown, nil, nil)
		return false

	case <-c.lostCh:
		emitter.Stop()
		c.transition(model.ModeReadOnly, ReasonLockLost, nil, nil)
		c.waitRetry(ctx)
		return true

	case <-c.yieldCh:
		emitter.Stop()
		releaseCtx, cancel := context.WithTimeout(context.Background(), c.releaseTimeout)
		defer cancel()
		if err := c.arb.Release(releaseCtx, c.id, sess.SessionID); err != nil {
			c.log.ErrorErr("release on yield failed", err)
		}
		c.transition(model.ModeReadOnly, ReasonYielded, nil, nil)
		c.waitRetry(ctx)
		return true
	}
}

// waitRetry sleeps until the poll interval elapses, a manual retry is
// requested, or the context ends.
func (c *Controller) waitRetry(ctx context.Context) {
	timer := time.NewTimer(c.policy.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-c.retryCh:
	}
}
