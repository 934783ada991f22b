package formatkit

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeToken reports whether the on-disk state behind a file-set has
// changed since the token was produced.
type ChangeToken interface {
	HasChanged() bool
	RegisterChangeCallback(callback func()) (unregister func())
}

// fsChangeToken watches a file-set's paths with fsnotify and fires once
// on the first relevant event; a fresh token must be taken to watch
// again.
type fsChangeToken struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	callbacks []func()
	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
}

// Watch returns a ChangeToken firing when any path of the file-set (or,
// for directories, anything beneath them) is written, created, removed or
// renamed. Cancel the context to release the underlying watcher.
func (fs *FileSet) Watch(ctx context.Context) (ChangeToken, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watched := map[string]bool{}
	for _, p := range fs.paths {
		// Watching the parent catches removal and renaming of the path
		// itself.
		dir := filepath.Dir(p)
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				watcher.Close()
				return nil, err
			}
			watched[dir] = true
		}
		if !watched[p] {
			if err := watcher.Add(p); err == nil {
				watched[p] = true
			}
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &fsChangeToken{watcher: watcher, cancel: cancel}
	go t.run(ctx, fs.paths)
	return t, nil
}

func (t *fsChangeToken) run(ctx context.Context, paths []string) {
	defer t.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(event, paths) {
				continue
			}
			// Absorb the burst of events a single logical change
			// produces before firing.
			debounce := time.After(WatchDebounce())
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.watcher.Events:
				case <-t.watcher.Errors:
				case <-debounce:
					t.signal()
					return
				}
			}
		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func relevantEvent(event fsnotify.Event, paths []string) bool {
	if !event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename) {
		return false
	}
	for _, p := range paths {
		if event.Name == p || pathHasPrefix(event.Name, p) {
			return true
		}
	}
	return false
}

func (t *fsChangeToken) signal() {
	if t.changed.Swap(true) {
		return
	}
	t.mu.RLock()
	callbacks := make([]func(), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.RUnlock()
	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

func (t *fsChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *fsChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, callback)
	index := len(t.callbacks) - 1
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if index < len(t.callbacks) {
			t.callbacks[index] = nil
		}
	}
}

// Stop releases the watcher without waiting for an event.
func (t *fsChangeToken) Stop() {
	t.cancel()
}
