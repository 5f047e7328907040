package farm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/justapithecus/bale/asset"
	"github.com/justapithecus/bale/types"
)

func testOptions() *types.Options {
	return &types.Options{
		OutDir:     "dist",
		PublicURL:  "/dist",
		Extensions: asset.NewRegistry().Extensions(),
	}
}

func write(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFarm_Run(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "index.js", `require("./foo.js");`)
	write(t, dir, "foo.js", "")

	f := New(2)
	defer f.End()

	result, err := f.Run(context.Background(), path, nil, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if result.Hash == "" || result.Generated["js"] == "" {
		t.Error("result must carry generated output and a hash")
	}
	if len(result.Dependencies) != 1 || result.Dependencies[0].Name != "./foo.js" {
		t.Errorf("expected the collected dependency, got %v", result.Dependencies)
	}
	if f.JobsRun() != 1 {
		t.Errorf("expected 1 job, got %d", f.JobsRun())
	}
}

func TestFarm_ConcurrentJobs(t *testing.T) {
	dir := t.TempDir()
	const n = 20
	paths := make([]string, n)
	for i := range paths {
		paths[i] = write(t, dir, filepath.Base(dir)+string(rune('a'+i%26))+".js", "module.exports = 1;")
	}

	f := New(4)
	defer f.End()

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			_, errs[i] = f.Run(context.Background(), p, nil, testOptions())
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("job %d failed: %v", i, err)
		}
	}
}

func TestFarm_JobFailureDoesNotPoisonPool(t *testing.T) {
	dir := t.TempDir()
	good := write(t, dir, "good.js", "module.exports = 1;")

	f := New(1)
	defer f.End()

	_, err := f.Run(context.Background(), filepath.Join(dir, "missing.js"), nil, testOptions())
	if err == nil {
		t.Fatal("expected a failure for the missing file")
	}

	// The single worker must still serve the next job.
	if _, err := f.Run(context.Background(), good, nil, testOptions()); err != nil {
		t.Fatalf("worker did not survive the failed job: %v", err)
	}
}

func TestFarm_RunAfterEnd(t *testing.T) {
	f := New(1)
	f.End()
	f.End() // idempotent

	_, err := f.Run(context.Background(), "/any.js", nil, testOptions())
	if !errors.Is(err, types.ErrFarmClosed) {
		t.Errorf("expected ErrFarmClosed, got %v", err)
	}
}

func TestFarm_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(1)
	defer f.End()

	// With a canceled context the submit select may take either branch;
	// a successful run is fine, but a failure must be the context error.
	dir := t.TempDir()
	path := write(t, dir, "a.js", "")
	if _, err := f.Run(ctx, path, nil, testOptions()); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("expected context error, got %v", err)
	}
}

func TestShared_ReusedAcrossCalls(t *testing.T) {
	defer EndShared()

	a := Shared(2)
	b := Shared(8)
	if a != b {
		t.Error("the shared farm must be created once and reused")
	}

	EndShared()
	c := Shared(2)
	if c == a {
		t.Error("EndShared must drop the shared instance")
	}
}
