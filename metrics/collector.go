// Package metrics provides per-build metrics collection.
//
// The Collector accumulates counters across builds in one bundler process.
// It is a leaf package with no internal dependencies. Farm statistics are
// absorbed at build completion rather than recorded live, avoiding
// double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the collected counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Build lifecycle
	BuildsStarted   int64
	BuildsCompleted int64
	BuildsFailed    int64
	Rebuilds        int64

	// Pipeline
	AssetsProcessed int64
	CacheHits       int64
	CacheMisses     int64
	OrphansSwept    int64

	// Farm (absorbed at build completion)
	WorkerJobs    int64
	WorkerRetries int64

	// Output
	BundlesWritten int64
	BytesWritten   int64
}

// Collector accumulates metrics. Thread-safe via sync.Mutex. All increment
// methods are nil-receiver safe so callers never guard.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector { return &Collector{} }

func (c *Collector) add(f func(*Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	f(&c.s)
	c.mu.Unlock()
}

// IncBuildStarted records a build start.
func (c *Collector) IncBuildStarted() { c.add(func(s *Snapshot) { s.BuildsStarted++ }) }

// IncBuildCompleted records a successful build.
func (c *Collector) IncBuildCompleted() { c.add(func(s *Snapshot) { s.BuildsCompleted++ }) }

// IncBuildFailed records a failed build.
func (c *Collector) IncBuildFailed() { c.add(func(s *Snapshot) { s.BuildsFailed++ }) }

// IncRebuild records a watcher-triggered rebuild.
func (c *Collector) IncRebuild() { c.add(func(s *Snapshot) { s.Rebuilds++ }) }

// IncAssetProcessed records one asset going through the pipeline.
func (c *Collector) IncAssetProcessed() { c.add(func(s *Snapshot) { s.AssetsProcessed++ }) }

// IncCacheHit records a processed result served from the cache.
func (c *Collector) IncCacheHit() { c.add(func(s *Snapshot) { s.CacheHits++ }) }

// IncCacheMiss records a cache miss that went to the farm.
func (c *Collector) IncCacheMiss() { c.add(func(s *Snapshot) { s.CacheMisses++ }) }

// AddOrphansSwept records assets removed by the orphan sweep.
func (c *Collector) AddOrphansSwept(n int) { c.add(func(s *Snapshot) { s.OrphansSwept += int64(n) }) }

// IncBundleWritten records one emitted bundle of the given size.
func (c *Collector) IncBundleWritten(bytes int64) {
	c.add(func(s *Snapshot) {
		s.BundlesWritten++
		s.BytesWritten += bytes
	})
}

// AbsorbFarmStats folds farm totals in at build completion. The farm keeps
// running totals, so previous absorptions are replaced, not summed.
func (c *Collector) AbsorbFarmStats(jobs, retries int64) {
	c.add(func(s *Snapshot) {
		s.WorkerJobs = jobs
		s.WorkerRetries = retries
	})
}

// Snapshot returns a copy of the current counters. Nil-receiver safe.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
