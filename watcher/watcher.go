// Package watcher adapts filesystem change notification behind a small
// interface so the rebuild loop never touches fsnotify directly.
package watcher

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers change events for explicitly registered paths.
type Watcher interface {
	// Add registers a path for change notification. Adding the same path
	// twice is a no-op.
	Add(path string) error
	// Remove unregisters a path.
	Remove(path string) error
	// Events returns the channel of changed paths. Closed by Close.
	Events() <-chan string
	// Close releases the watcher. The events channel is closed.
	Close() error
}

// FSWatcher is the fsnotify-backed Watcher.
type FSWatcher struct {
	fs     *fsnotify.Watcher
	events chan string
	done   chan struct{}

	mu    sync.Mutex
	paths map[string]struct{}
}

// NewFS creates a running fsnotify watcher.
func NewFS() (*FSWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &FSWatcher{
		fs:     fs,
		events: make(chan string, 64),
		done:   make(chan struct{}),
		paths:  make(map[string]struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *FSWatcher) loop() {
	defer close(w.events)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			select {
			case w.events <- ev.Name:
			case <-w.done:
				return
			}
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; the next change event re-syncs.
		case <-w.done:
			return
		}
	}
}

// Add implements Watcher.
func (w *FSWatcher) Add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.paths[path]; ok {
		return nil
	}
	if err := w.fs.Add(path); err != nil {
		return err
	}
	w.paths[path] = struct{}{}
	return nil
}

// Remove implements Watcher.
func (w *FSWatcher) Remove(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.paths[path]; !ok {
		return nil
	}
	delete(w.paths, path)
	return w.fs.Remove(path)
}

// Events implements Watcher.
func (w *FSWatcher) Events() <-chan string { return w.events }

// Close implements Watcher.
func (w *FSWatcher) Close() error {
	close(w.done)
	return w.fs.Close()
}

var _ Watcher = (*FSWatcher)(nil)

// Nop is a disabled watcher for one-shot builds and tests.
type Nop struct {
	ch chan string
}

// NewNop returns a watcher that never fires.
func NewNop() *Nop { return &Nop{ch: make(chan string)} }

func (n *Nop) Add(string) error      { return nil }
func (n *Nop) Remove(string) error   { return nil }
func (n *Nop) Events() <-chan string { return n.ch }
func (n *Nop) Close() error          { close(n.ch); return nil }

var _ Watcher = (*Nop)(nil)
