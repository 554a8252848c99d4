package marker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/propsync/propsync/pkg/logging"
)

// Watcher notifies when the marker appears or disappears, letting a
// read-only client retry acquisition immediately after a release or
// force-unlock instead of waiting for the next poll tick. It is layered on
// top of polling, never a replacement: fsnotify delivery is not guaranteed
// on every network filesystem.
type Watcher struct {
	file    *File
	fsw     *fsnotify.Watcher
	changes chan struct{}
	log     *logging.Logger
}

// NewWatcher starts watching the marker's directory. The caller owns the
// returned Watcher and must Close it.
func NewWatcher(file *File, log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.New(logging.LevelInfo)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create marker watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(file.path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch marker dir: %w", err)
	}
	return &Watcher{
		file:    file,
		fsw:     fsw,
		changes: make(chan struct{}, 1),
		log:     log,
	}, nil
}

// Changes delivers a signal whenever the marker changes. The channel has a
// one-slot buffer; bursts coalesce into a single pending signal.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run pumps fsnotify events until the context is cancelled or the
// underlying watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.file.path) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.ErrorErr("marker watcher", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
