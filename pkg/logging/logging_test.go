package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(level)
	l.SetOutput(&buf)
	return l, &buf
}

func TestLogger_JSONEntry(t *testing.T) {
	l, buf := capture(LevelInfo)

	l.Info("lock acquired", map[string]any{"session_id": "abc"})

	var e entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "info", e.Level)
	assert.Equal(t, "lock acquired", e.Message)
	assert.Equal(t, "abc", e.Fields["session_id"])
	assert.NotEmpty(t, e.Timestamp)
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := capture(LevelWarn)

	l.Debug("dropped")
	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestLogger_ErrorErr(t *testing.T) {
	l, buf := capture(LevelError)

	l.ErrorErr("renew failed", errors.New("store unreachable"), map[string]any{"attempt": 3})

	out := buf.String()
	assert.Contains(t, out, `"error":"store unreachable"`)
	assert.Contains(t, out, `"attempt":3`)
}

func TestLogger_WithFields(t *testing.T) {
	l, buf := capture(LevelInfo)

	child := l.WithFields(map[string]any{"component": "arbiter"})
	child.SetOutput(buf)
	child.Info("denied")

	assert.Contains(t, buf.String(), `"component":"arbiter"`)
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := capture(LevelInfo)
	l.SetFormat(FormatText)

	l.Info("mode changed", map[string]any{"to": "read-only", "from": "write"})

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "mode changed")
	// Fields are emitted in sorted key order.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("from=")), bytes.Index(buf.Bytes(), []byte("to=")))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestGlobal(t *testing.T) {
	l, buf := capture(LevelInfo)
	SetGlobal(l)
	defer SetGlobal(New(LevelInfo))

	Info("global entry")
	assert.Contains(t, buf.String(), "global entry")
}
