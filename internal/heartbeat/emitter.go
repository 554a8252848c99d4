// Package heartbeat runs the per-client background renewal loop for a
// held write lock. Renewals for a session are strictly ordered: at most
// one is in flight, and a stopped emitter never fires again, so shutdown
// cannot resurrect a session the controller is deleting.
package heartbeat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/propsync/propsync/pkg/errclass"
	"github.com/propsync/propsync/pkg/logging"
)

// RenewFunc renews the heartbeat for the owning session. It returns
// errclass.ErrSessionSuperseded when the session was reclaimed.
type RenewFunc func(ctx context.Context) error

// Emitter periodically refreshes the session heartbeat.
type Emitter struct {
	interval time.Duration
	renew    RenewFunc
	onLost   func(error)
	log      *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an emitter. onLost is invoked (once) when a renewal reports
// the session no longer belongs to this client; the emitter stops itself
// afterwards.
func New(interval time.Duration, renew RenewFunc, onLost func(error), log *logging.Logger) *Emitter {
	if log == nil {
		log = logging.New(logging.LevelInfo)
	}
	return &Emitter{interval: interval, renew: renew, onLost: onLost, log: log}
}

// Start launches the renewal loop. Starting a running emitter is a no-op.
func (e *Emitter) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(loopCtx, e.done)
}

// Stop cancels the loop and waits for it to finish. After Stop returns no
// further renewal will fire. Stopping a stopped emitter is a no-op.
func (e *Emitter) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Emitter) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := e.renew(ctx)
		if err == nil {
			e.log.Debug("heartbeat renewed")
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errclass.ErrSessionSuperseded) {
			e.log.Warn("write lock lost: session superseded")
			if e.onLost != nil {
				e.onLost(err)
			}
			return
		}
		// Transient failure: the staleness timeout tolerates several
		// missed renewals, so keep trying on the next tick.
		e.log.ErrorErr("heartbeat renewal failed", err)
	}
}
