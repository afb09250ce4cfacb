// Package watch calls back when configuration files change.
package watch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satishbabariya/dbre/internal/debug"
)

// DefaultDelay is how long the watcher waits for writes to settle.
const DefaultDelay = 500 * time.Millisecond

// Watcher watches a set of files for changes
type Watcher struct {
	// Delay collapses bursts of events into one callback.
	Delay time.Duration

	files    map[string]bool
	callback func(path string) error
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher for files. The files need not exist yet;
// their directories must.
func NewWatcher(files []string, callback func(path string) error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		Delay:    DefaultDelay,
		files:    make(map[string]bool, len(files)),
		callback: callback,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		absPath, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[absPath] = true

		// Editors replace files, so the directory is watched instead.
		dir := filepath.Dir(absPath)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch directory: %w", err)
		}
		dirs[dir] = true
	}
	return w, nil
}

// Start starts watching in the background
func (w *Watcher) Start() {
	go func() {
		debounceTimer := time.NewTimer(w.Delay)
		debounceTimer.Stop()
		var (
			debounceCh <-chan time.Time
			changed    string
		)

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				eventPath, err := filepath.Abs(event.Name)
				if err != nil || !w.files[eventPath] {
					continue
				}
				debug.Debug("file changed", "path", eventPath, "op", event.Op.String())
				changed = eventPath
				debounceTimer.Reset(w.Delay)
				debounceCh = debounceTimer.C

			case <-debounceCh:
				if err := w.callback(changed); err != nil {
					debug.Error("watch callback failed", "path", changed, "error", err)
				}
				debounceCh = nil

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				debug.Warn("watch error", "error", err)

			case <-w.done:
				debounceTimer.Stop()
				return
			}
		}
	}()
}

// Stop stops watching
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
