package marker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsync/propsync/internal/marker"
	"github.com/propsync/propsync/pkg/model"
)

func testSession() *model.Session {
	return &model.Session{
		SessionID:     "s-123",
		UserID:        1,
		Username:      "alice",
		MachineID:     "front-desk",
		AcquiredAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		LastHeartbeat: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IsWriteLock:   true,
	}
}

func newFile(t *testing.T) *marker.File {
	t.Helper()
	return marker.NewFile(filepath.Join(t.TempDir(), "estate.db.lock"), nil)
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Write(testSession()))

	info := f.Read()
	require.NotNil(t, info)
	assert.Equal(t, "alice@front-desk", info.Holder)
	assert.Equal(t, "s-123", info.SessionID)
	assert.True(t, info.AcquiredAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
}

func TestExistsDelete(t *testing.T) {
	f := newFile(t)
	assert.False(t, f.Exists())

	require.NoError(t, f.Write(testSession()))
	assert.True(t, f.Exists())

	require.NoError(t, f.Delete())
	assert.False(t, f.Exists())

	// Deleting an absent marker is a no-op.
	require.NoError(t, f.Delete())
}

func TestRead_Malformed(t *testing.T) {
	f := newFile(t)
	require.NoError(t, os.WriteFile(f.Path(), []byte("garbage"), 0644))
	assert.Nil(t, f.Read())
}

func TestReconcile_Convergence(t *testing.T) {
	sess := testSession()

	// All four combinations of {marker present/absent} x {session present/absent}
	// must converge after one Reconcile call.
	cases := []struct {
		name          string
		markerPresent bool
		active        *model.Session
		wantPresent   bool
	}{
		{"absent/none", false, nil, false},
		{"absent/active", false, sess, true},
		{"present/none", true, nil, false},
		{"present/active", true, sess, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFile(t)
			if tc.markerPresent {
				require.NoError(t, f.Write(testSession()))
			}

			f.Reconcile(tc.active)

			assert.Equal(t, tc.wantPresent, f.Exists())
			if tc.wantPresent {
				info := f.Read()
				require.NotNil(t, info)
				assert.Equal(t, tc.active.SessionID, info.SessionID)
			}
		})
	}
}

func TestReconcile_ReplacesForeignMarker(t *testing.T) {
	f := newFile(t)
	stale := testSession()
	stale.SessionID = "older-session"
	require.NoError(t, f.Write(stale))

	current := testSession()
	f.Reconcile(current)

	info := f.Read()
	require.NotNil(t, info)
	assert.Equal(t, "s-123", info.SessionID)
}

func TestWatcher_SignalsMarkerChanges(t *testing.T) {
	f := newFile(t)

	w, err := marker.NewWatcher(f, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, f.Write(testSession()))

	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal after marker write")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	f := newFile(t)

	w, err := marker.NewWatcher(f, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(f.Path()), "unrelated"), []byte("x"), 0644))

	select {
	case <-w.Changes():
		t.Fatal("unrelated file must not signal")
	case <-time.After(200 * time.Millisecond):
	}
}
