// Package farm implements the worker pool that runs assets through the
// processing pipeline off the coordinator.
//
// Workers are isolated: each job reconstructs the asset from
// (path, package, options), including the parser registry, which is
// reconstituted from the extensions table in the options, and returns a
// pure ProcessedResult. No state is shared with the coordinator.
package farm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/justapithecus/bale/asset"
	"github.com/justapithecus/bale/types"
)

type job struct {
	path  string
	pkg   *types.Package
	opts  *types.Options
	reply chan jobResult
}

type jobResult struct {
	res *types.ProcessedResult
	err error
}

// Farm dispatches processing jobs to a fixed pool of workers.
type Farm struct {
	mu     sync.RWMutex
	jobs   chan job
	closed bool
	wg     sync.WaitGroup

	jobsRun atomic.Int64
	retries atomic.Int64
}

// New starts a farm with the given number of workers (<=0 means one).
func New(workers int) *Farm {
	if workers <= 0 {
		workers = 1
	}
	f := &Farm{jobs: make(chan job)}
	f.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go f.worker()
	}
	return f
}

func (f *Farm) worker() {
	defer f.wg.Done()
	for j := range f.jobs {
		res, err := runJob(j)
		j.reply <- jobResult{res: res, err: err}
	}
}

// runJob executes one job with panic isolation. A panicking variant is
// reported as a worker crash; the worker itself keeps serving jobs.
func runJob(j job) (res *types.ProcessedResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: processing %s: %v", types.ErrWorkerCrashed, j.path, r)
		}
	}()

	registry := asset.FromExtensions(j.opts.Extensions)
	a := registry.Get(j.path, j.pkg, j.opts)
	out, err := asset.Process(a)
	if err != nil {
		return nil, err
	}
	if out.Generated == nil || out.Hash == "" {
		return nil, fmt.Errorf("%w: malformed result for %s", types.ErrWorkerCrashed, j.path)
	}
	return out, nil
}

// Run submits a processing job and blocks until its result arrives or ctx
// is done. Crashed jobs are retried once before the failure surfaces.
func (f *Farm) Run(ctx context.Context, path string, pkg *types.Package, opts *types.Options) (*types.ProcessedResult, error) {
	res, err := f.runOnce(ctx, path, pkg, opts)
	if err != nil && isCrash(err) {
		f.retries.Add(1)
		res, err = f.runOnce(ctx, path, pkg, opts)
	}
	return res, err
}

func isCrash(err error) bool {
	return errors.Is(err, types.ErrWorkerCrashed)
}

func (f *Farm) runOnce(ctx context.Context, path string, pkg *types.Package, opts *types.Options) (*types.ProcessedResult, error) {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return nil, types.ErrFarmClosed
	}
	j := job{path: path, pkg: pkg, opts: opts, reply: make(chan jobResult, 1)}
	select {
	case f.jobs <- j:
		f.mu.RUnlock()
	case <-ctx.Done():
		f.mu.RUnlock()
		return nil, ctx.Err()
	}
	f.jobsRun.Add(1)

	select {
	case r := <-j.reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// End drains and terminates the pool. Further Run calls fail with
// ErrFarmClosed. Safe to call more than once.
func (f *Farm) End() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.jobs)
	f.mu.Unlock()
	f.wg.Wait()
}

// JobsRun returns the total number of jobs dispatched.
func (f *Farm) JobsRun() int64 { return f.jobsRun.Load() }

// Retries returns the number of crash retries performed.
func (f *Farm) Retries() int64 { return f.retries.Load() }

// Process-wide shared farm, created lazily on first use and reused across
// rebuilds to avoid spawn cost.
var (
	sharedMu sync.Mutex
	shared   *Farm
)

// Shared returns the process-wide farm, creating it with the given worker
// count on first use.
func Shared(workers int) *Farm {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(workers)
	}
	return shared
}

// EndShared tears down the process-wide farm, if any. The next Shared call
// creates a fresh one.
func EndShared() {
	sharedMu.Lock()
	f := shared
	shared = nil
	sharedMu.Unlock()
	if f != nil {
		f.End()
	}
}
