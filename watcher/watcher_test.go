package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFSWatcher_DeliversWriteEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.js")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewFS()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}
	if err := w.Add(path); err != nil {
		t.Fatalf("re-adding a watched path must be a no-op: %v", err)
	}

	if err := os.WriteFile(path, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Events():
		if got != path {
			t.Errorf("expected event for %s, got %s", path, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered for a watched write")
	}
}

func TestFSWatcher_RemoveStopsDelivery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.js")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewFS()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(path); err != nil {
		t.Fatal(err)
	}
	if err := w.Remove(path); err != nil {
		t.Fatal(err)
	}
	// Removing an unwatched path is a no-op.
	if err := w.Remove(filepath.Join(dir, "other.js")); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Events():
		t.Errorf("unexpected event after Remove: %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNopWatcher(t *testing.T) {
	w := NewNop()
	if err := w.Add("/x"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("the nop watcher's channel closes on Close")
	}
}
