package heartbeat_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsync/propsync/internal/heartbeat"
	"github.com/propsync/propsync/pkg/errclass"
)

func TestEmitter_RenewsPeriodically(t *testing.T) {
	var renewals int64
	e := heartbeat.New(10*time.Millisecond, func(context.Context) error {
		atomic.AddInt64(&renewals, 1)
		return nil
	}, nil, nil)

	e.Start(context.Background())
	defer e.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&renewals) >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEmitter_StopPreventsFurtherRenewals(t *testing.T) {
	var renewals int64
	e := heartbeat.New(10*time.Millisecond, func(context.Context) error {
		atomic.AddInt64(&renewals, 1)
		return nil
	}, nil, nil)

	e.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	e.Stop()

	after := atomic.LoadInt64(&renewals)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&renewals), "no renewal may fire after Stop returns")
}

func TestEmitter_OnLostFiredOnceAndStops(t *testing.T) {
	var renewals, lost int64
	e := heartbeat.New(10*time.Millisecond, func(context.Context) error {
		atomic.AddInt64(&renewals, 1)
		return errclass.ErrSessionSuperseded.WithMessage("reclaimed")
	}, func(err error) {
		atomic.AddInt64(&lost, 1)
		assert.ErrorIs(t, err, errclass.ErrSessionSuperseded)
	}, nil)

	e.Start(context.Background())
	defer e.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&lost) == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&lost))
	assert.Equal(t, int64(1), atomic.LoadInt64(&renewals), "emitter stops after the lost signal")
}

func TestEmitter_TransientErrorsKeepGoing(t *testing.T) {
	var renewals int64
	e := heartbeat.New(10*time.Millisecond, func(context.Context) error {
		atomic.AddInt64(&renewals, 1)
		return errclass.ErrStoreUnavailable.WithMessage("blip")
	}, func(error) {
		t.Error("transient failures must not signal lock loss")
	}, nil)

	e.Start(context.Background())
	defer e.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&renewals) >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEmitter_OneRenewalInFlight(t *testing.T) {
	var inFlight, maxInFlight int64
	e := heartbeat.New(5*time.Millisecond, func(context.Context) error {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond) // slower than the interval
		atomic.AddInt64(&inFlight, -1)
		return nil
	}, nil, nil)

	e.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	e.Stop()

	assert.Equal(t, int64(1), atomic.LoadInt64(&maxInFlight))
}

func TestEmitter_StartStopIdempotent(t *testing.T) {
	e := heartbeat.New(time.Hour, func(context.Context) error { return nil }, nil, nil)

	e.Start(context.Background())
	e.Start(context.Background())
	e.Stop()
	e.Stop()
}

func TestEmitter_ContextCancelStopsLoop(t *testing.T) {
	var mu sync.Mutex
	count := 0
	ctx, cancel := context.WithCancel(context.Background())

	e := heartbeat.New(10*time.Millisecond, func(context.Context) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}, nil, nil)

	e.Start(ctx)
	cancel()
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, after, count)
	mu.Unlock()

	e.Stop()
}
