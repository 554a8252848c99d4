package audit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsync/propsync/internal/audit"
	"github.com/propsync/propsync/internal/store"
	"github.com/propsync/propsync/pkg/model"
)

func newRecorder(t *testing.T) *audit.StoreRecorder {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "estate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return audit.NewStoreRecorder(st.DB())
}

func TestRecordAndTail(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	actor := model.Identity{UserID: 1, Username: "admin", Machine: "office-1"}
	require.NoError(t, r.Record(ctx, audit.Event{
		Actor:        actor,
		Action:       audit.ActionForceUnlock,
		TargetHolder: "alice@front-desk",
		Detail:       "holder unreachable",
	}))

	events, err := r.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionForceUnlock, events[0].Action)
	assert.Equal(t, "admin", events[0].Actor.Username)
	assert.Equal(t, "alice@front-desk", events[0].TargetHolder)
	assert.False(t, events[0].Time.IsZero())
}

func TestTail_NewestFirstAndLimited(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	actor := model.Identity{UserID: 2, Username: "bob"}
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, action := range []audit.Action{audit.ActionGranted, audit.ActionDenied, audit.ActionReleased} {
		require.NoError(t, r.Record(ctx, audit.Event{
			Actor:  actor,
			Action: action,
			Time:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := r.Tail(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionReleased, events[0].Action)
	assert.Equal(t, audit.ActionDenied, events[1].Action)
}

func TestTail_Empty(t *testing.T) {
	r := newRecorder(t)

	events, err := r.Tail(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNop(t *testing.T) {
	assert.NoError(t, audit.Nop{}.Record(context.Background(), audit.Event{}))
}
