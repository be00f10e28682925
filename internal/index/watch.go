package index

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ajaxzhan/filekeeper/internal/logging"
)

// Watcher calls a handler whenever the snapshot file is replaced or
// written by someone.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the snapshot at path. The parent
// directory is watched so that rename-over replacements are seen.
func NewWatcher(path string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to add snapshot directory to watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: 100 * time.Millisecond,
		watcher:  watcher,
	}, nil
}

// Run blocks until ctx is cancelled, invoking onChange after each burst
// of events on the snapshot file.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Snapshot watcher error", logging.Err(err))
		}
	}
}
