// Package marker manages the advisory lock marker colocated with the
// shared database. The marker is a cache for cheap presence checks; the
// sessions table stays authoritative, and Reconcile pulls the marker back
// in line with it after every arbitration decision.
package marker

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/propsync/propsync/pkg/fsutil"
	"github.com/propsync/propsync/pkg/logging"
	"github.com/propsync/propsync/pkg/model"
)

// Info is the decoded marker content: holder identity, acquisition time,
// and the session id the marker mirrors.
type Info struct {
	Holder     string
	AcquiredAt time.Time
	SessionID  string
}

// File is the marker at a fixed path beside the shared store.
type File struct {
	path string
	log  *logging.Logger
}

// NewFile creates a marker handle for the given path.
func NewFile(path string, log *logging.Logger) *File {
	if log == nil {
		log = logging.New(logging.LevelInfo)
	}
	return &File{path: path, log: log}
}

// Path returns the marker location.
func (f *File) Path() string { return f.path }

// Write creates or replaces the marker to mirror the given session.
// Best-effort: failures are reported for logging by the caller but never
// block arbitration.
func (f *File) Write(sess *model.Session) error {
	body := fmt.Sprintf("%s\n%s\n%s\n",
		sess.HolderDisplay(),
		sess.AcquiredAt.UTC().Format(time.RFC3339),
		sess.SessionID)
	if err := fsutil.AtomicWrite(f.path, []byte(body), 0644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// Exists reports marker presence without touching the database.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Read decodes the marker. Returns nil when the marker is absent or
// malformed; a garbled marker is treated as absent and repaired by the
// next Reconcile.
func (f *File) Read() *Info {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 3 {
		return nil
	}
	acquired, err := time.Parse(time.RFC3339, lines[1])
	if err != nil {
		return nil
	}
	return &Info{Holder: lines[0], AcquiredAt: acquired, SessionID: lines[2]}
}

// Delete removes the marker. Best-effort and idempotent.
func (f *File) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete marker: %w", err)
	}
	return nil
}

// Reconcile brings the marker in line with the authoritative session:
// creates it when a write lock exists without a marker, removes it when
// the marker outlived its session. Divergence is tolerated only between
// reconciliation passes.
func (f *File) Reconcile(active *model.Session) {
	if active == nil {
		if f.Exists() {
			if err := f.Delete(); err != nil {
				f.log.ErrorErr("marker reconcile: remove orphaned marker", err)
			}
		}
		return
	}

	info := f.Read()
	if info != nil && info.SessionID == active.SessionID {
		return
	}
	if err := f.Write(active); err != nil {
		f.log.ErrorErr("marker reconcile: mirror active session", err,
			map[string]any{"session_id": active.SessionID})
	}
}
