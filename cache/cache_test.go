package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/bale/log"
	"github.com/justapithecus/bale/types"
)

func testOptions() *types.Options {
	return &types.Options{
		PublicURL:  "/dist",
		Extensions: map[string]string{".js": "js"},
	}
}

func testResult() *types.ProcessedResult {
	return &types.ProcessedResult{
		Generated: map[string]string{"js": "module.exports = 1;"},
		Hash:      "abc123",
		Dependencies: []types.DependencyRecord{
			{Name: "./foo.js", Loc: &types.SourceLocation{Line: 1, Column: 9}},
			{Name: "./lazy.js", Dynamic: true},
		},
	}
}

func newTestCache(t *testing.T) (*FSCache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := NewFS(filepath.Join(dir, ".cache"), testOptions(), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return c, dir
}

func writeSource(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFSCache_RoundTrip(t *testing.T) {
	c, dir := newTestCache(t)
	path := writeSource(t, dir, "index.js", "source")

	c.Write(path, testResult())
	got := c.Read(path)
	if got == nil {
		t.Fatal("expected a cache hit")
	}
	if got.Hash != "abc123" {
		t.Errorf("hash not preserved, got %q", got.Hash)
	}
	if len(got.Dependencies) != 2 || got.Dependencies[0].Loc == nil || got.Dependencies[0].Loc.Line != 1 {
		t.Errorf("dependency records not preserved, got %+v", got.Dependencies)
	}
	if !got.Dependencies[1].Dynamic {
		t.Error("dynamic flag not preserved")
	}
}

func TestFSCache_MissOnAbsentEntry(t *testing.T) {
	c, dir := newTestCache(t)
	path := writeSource(t, dir, "index.js", "source")
	if c.Read(path) != nil {
		t.Error("expected a miss for an unwritten entry")
	}
}

func TestFSCache_StaleOnContentChange(t *testing.T) {
	c, dir := newTestCache(t)
	path := writeSource(t, dir, "index.js", "source")
	c.Write(path, testResult())

	// Change size and mtime.
	writeSource(t, dir, "index.js", "changed source")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if c.Read(path) != nil {
		t.Error("expected a miss after the source changed")
	}
}

func TestFSCache_StaleOnFingerprintChange(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, ".cache")
	path := writeSource(t, dir, "index.js", "source")

	c1, err := NewFS(cacheDir, testOptions(), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	c1.Write(path, testResult())

	opts := testOptions()
	opts.Minify = true
	c2, err := NewFS(cacheDir, opts, log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if c2.Read(path) != nil {
		t.Error("expected a miss under a different option fingerprint")
	}
}

func TestFSCache_Invalidate(t *testing.T) {
	c, dir := newTestCache(t)
	path := writeSource(t, dir, "index.js", "source")
	c.Write(path, testResult())
	c.Invalidate(path)
	if c.Read(path) != nil {
		t.Error("expected a miss after Invalidate")
	}
}

func TestFSCache_CorruptEntryIsAMiss(t *testing.T) {
	c, dir := newTestCache(t)
	path := writeSource(t, dir, "index.js", "source")
	c.Write(path, testResult())

	if err := os.WriteFile(c.entryPath(path), []byte("not msgpack"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c.Read(path) != nil {
		t.Error("corrupt entries must read as a miss")
	}
	if _, err := os.Stat(c.entryPath(path)); !os.IsNotExist(err) {
		t.Error("corrupt entries must be deleted")
	}
}

func TestClean(t *testing.T) {
	c, dir := newTestCache(t)
	path := writeSource(t, dir, "index.js", "source")
	c.Write(path, testResult())

	if err := Clean(filepath.Join(dir, ".cache")); err != nil {
		t.Fatal(err)
	}
	if c.Read(path) != nil {
		t.Error("expected an empty cache after Clean")
	}

	// Cleaning a missing directory is not an error.
	if err := Clean(filepath.Join(dir, "nope")); err != nil {
		t.Fatal(err)
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	c.Write("/x.js", testResult())
	if c.Read("/x.js") != nil {
		t.Error("the nop cache never hits")
	}
	c.Invalidate("/x.js")
}
