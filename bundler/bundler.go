package bundler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/justapithecus/bale/asset"
	"github.com/justapithecus/bale/cache"
	"github.com/justapithecus/bale/diag"
	"github.com/justapithecus/bale/farm"
	"github.com/justapithecus/bale/hmr"
	"github.com/justapithecus/bale/log"
	"github.com/justapithecus/bale/metrics"
	"github.com/justapithecus/bale/packager"
	"github.com/justapithecus/bale/resolver"
	"github.com/justapithecus/bale/types"
	"github.com/justapithecus/bale/watcher"
)

// Delegate is the optional user-supplied hook for dependencies the
// collectors cannot see (external metadata, generated config).
type Delegate interface {
	// GetImplicitDependencies returns extra dependency records for a, or
	// nil for none.
	GetImplicitDependencies(a asset.Asset) []types.DependencyRecord
}

// nullDelegate is the default no-op delegate.
type nullDelegate struct{}

func (nullDelegate) GetImplicitDependencies(asset.Asset) []types.DependencyRecord { return nil }

// Config assembles a Bundler. Entry is required; a nil Options is replaced
// by the normalized defaults, and every other field has a working default.
type Config struct {
	// Entry is the entry source file.
	Entry string
	// Options is the normalized option set.
	Options *types.Options

	Logger    *log.Logger
	Registry  *asset.Registry
	Resolver  *resolver.Resolver
	Cache     cache.Cache
	Farm      *farm.Farm
	Watcher   watcher.Watcher
	Notifier  hmr.Notifier
	Delegate  Delegate
	Packagers *packager.Registry
	Collector *metrics.Collector
}

// Bundler is the coordinator. The graph, the watcher registrations, and
// the bundle tree are mutated only while buildMu is held; workers see only
// (path, package, options) and return pure results.
type Bundler struct {
	entry     string
	opts      *types.Options
	logger    *log.Logger
	registry  *asset.Registry
	res       *resolver.Resolver
	cache     cache.Cache
	farm      *farm.Farm
	watch     watcher.Watcher
	notifier  hmr.Notifier
	delegate  Delegate
	packagers *packager.Registry
	collector *metrics.Collector

	// buildMu serializes builds: the coordinator runs one build at a time.
	buildMu sync.Mutex
	// graphMu guards loadedAssets, includedEdges, and per-node load state
	// during the load fan-out.
	graphMu sync.Mutex

	loadedAssets  map[string]*Node
	includedEdges map[string][]*Node
	nextAssetID   int

	mainAsset    *Node
	mainBundle   *Bundle
	bundleRoots  map[*Node]*Bundle
	bundleHashes map[string]string
	errored      bool

	changed map[string]*Node

	started   bool
	rebuildCh chan struct{}
	stopOnce  sync.Once
	stopCh    chan struct{}
	watchWG   sync.WaitGroup
}

// New creates a bundler for the given entry. Options are normalized here;
// extension and packager registration stays open until the first Bundle
// call locks both registries.
func New(cfg Config) (*Bundler, error) {
	entry, err := filepath.Abs(cfg.Entry)
	if err != nil {
		return nil, err
	}

	opts := cfg.Options
	if opts == nil {
		opts = &types.Options{}
	}
	opts.Normalize()

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(&log.BuildContext{
			Entry:      entry,
			OutDir:     opts.OutDir,
			Production: opts.Production,
		}, opts.LogLevel)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = asset.NewRegistry()
	}

	w := cfg.Watcher
	if w == nil {
		w = watcher.NewNop()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = hmr.Multi{}
	}

	delegate := cfg.Delegate
	if delegate == nil {
		delegate = nullDelegate{}
	}

	packagers := cfg.Packagers
	if packagers == nil {
		packagers = packager.NewRegistry()
	}

	return &Bundler{
		entry:         entry,
		opts:          opts,
		logger:        logger,
		registry:      registry,
		res:           cfg.Resolver,
		cache:         cfg.Cache,
		farm:          cfg.Farm,
		watch:         w,
		notifier:      notifier,
		delegate:      delegate,
		packagers:     packagers,
		collector:     cfg.Collector,
		loadedAssets:  make(map[string]*Node),
		includedEdges: make(map[string][]*Node),
		bundleRoots:   make(map[*Node]*Bundle),
		bundleHashes:  make(map[string]string),
		changed:       make(map[string]*Node),
		rebuildCh:     make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}, nil
}

// start performs first-build setup: freeze the registries, derive the
// extensions table and the dependent collaborators, create the output
// directory.
func (b *Bundler) start() error {
	if b.started {
		return nil
	}
	b.started = true

	b.registry.Lock()
	b.packagers.Lock()

	if b.opts.Extensions == nil {
		b.opts.Extensions = b.registry.Extensions()
	}
	if b.res == nil {
		b.res = resolver.New(b.registry.SupportedExtensions())
	}
	if b.farm == nil {
		b.farm = farm.Shared(b.opts.Workers)
	}
	if b.cache == nil {
		if b.opts.Cache {
			fs, err := cache.NewFS(b.opts.CacheDir, b.opts, b.logger)
			if err != nil {
				return err
			}
			b.cache = fs
		} else {
			b.cache = cache.Nop{}
		}
	}

	if err := os.MkdirAll(b.opts.OutDir, 0o755); err != nil {
		return &types.IOError{Path: b.opts.OutDir, Op: "mkdir", Err: err}
	}
	return nil
}

// Bundle runs one full build: graph load, bundle-tree construction, orphan
// sweep, packaging. In watch mode a failure leaves the bundler alive for
// the next change; callers decide whether to propagate.
func (b *Bundler) Bundle(ctx context.Context) (*Bundle, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()
	return b.bundleLocked(ctx)
}

func (b *Bundler) bundleLocked(ctx context.Context) (*Bundle, error) {
	start := time.Now()
	b.collector.IncBuildStarted()

	root, err := b.buildOnce(ctx)
	if err != nil {
		b.errored = true
		b.collector.IncBuildFailed()
		b.logger.Error("build failed", map[string]any{"error": err.Error()})
		if b.opts.LogLevel >= 1 {
			os.Stderr.WriteString(diag.FormatError(err))
		}
		b.notifier.NotifyError(err.Error())
		return nil, err
	}

	b.errored = false
	b.collector.IncBuildCompleted()
	b.collector.AbsorbFarmStats(b.farm.JobsRun(), b.farm.Retries())

	b.broadcastUpdate()

	snap := b.collector.Snapshot()
	b.logger.Info("build complete", map[string]any{
		"duration_ms":  time.Since(start).Milliseconds(),
		"assets":       len(b.loadedAssets),
		"bundles":      snap.BundlesWritten,
		"cache_hits":   snap.CacheHits,
		"cache_misses": snap.CacheMisses,
	})
	return root, nil
}

func (b *Bundler) buildOnce(ctx context.Context) (*Bundle, error) {
	if err := b.start(); err != nil {
		return nil, err
	}

	main, err := b.resolveAsset(b.entry, "")
	if err != nil {
		return nil, err
	}
	b.mainAsset = main

	// A rebuild re-runs the pipeline from the invalidated assets; their
	// recursion pulls in anything new. Untouched subtrees short-circuit on
	// their done state. The first build starts from the entry.
	targets := []*Node{main}
	for _, n := range b.changed {
		if n != main {
			targets = append(targets, n)
		}
	}
	for _, n := range targets {
		if err := b.loadAsset(ctx, n); err != nil {
			return nil, err
		}
	}

	// Clean slate for the tree builder: membership only, processing state
	// survives.
	for _, n := range b.loadedAssets {
		n.InvalidateBundle()
	}
	b.bundleRoots = make(map[*Node]*Bundle)
	b.assignAssetIDs(main)

	root := b.createBundleTree(main, nil, nil)
	b.mainBundle = root

	b.unloadOrphanedAssets()

	hashes, err := b.packageBundles(root)
	if err != nil {
		return nil, err
	}
	b.bundleHashes = hashes
	return root, nil
}

// assignAssetIDs numbers the graph in depth-first dependency order from
// the entry. Load fan-out resolves assets in a nondeterministic
// interleaving, so ids are fixed here, where the order is a pure function
// of the graph, keeping emitted module tables byte-identical across runs.
func (b *Bundler) assignAssetIDs(main *Node) {
	next := 1
	visited := make(map[*Node]struct{})
	var walk func(n *Node)
	walk = func(n *Node) {
		if _, ok := visited[n]; ok {
			return
		}
		visited[n] = struct{}{}
		n.Asset.Base().ID = next
		next++
		for _, d := range n.Deps {
			if child := n.DepAssets[d.Name]; child != nil {
				walk(child)
			}
		}
	}
	walk(main)
}

// broadcastUpdate pushes the invalidated-and-rebuilt asset set to the
// update notifier. The initial build has no changed set and broadcasts
// nothing.
func (b *Bundler) broadcastUpdate() {
	if len(b.changed) == 0 {
		return
	}
	changed := b.changed
	b.changed = make(map[string]*Node)

	assets := make([]hmr.UpdateAsset, 0, len(changed))
	for path, n := range changed {
		if _, inGraph := b.loadedAssets[path]; !inGraph {
			continue
		}
		deps := make(map[string]int, len(n.DepAssets))
		for spec, child := range n.DepAssets {
			deps[spec] = child.ID()
		}
		assets = append(assets, hmr.UpdateAsset{
			ID:        n.ID(),
			Generated: n.Asset.Base().Generated,
			Deps:      deps,
		})
	}
	if len(assets) > 0 {
		b.notifier.NotifyUpdate(assets)
	}
}

// MainBundle returns the root of the last successful bundle tree.
func (b *Bundler) MainBundle() *Bundle { return b.mainBundle }

// Errored reports whether the last build failed.
func (b *Bundler) Errored() bool { return b.errored }

// LoadedAssetCount returns the current graph size.
func (b *Bundler) LoadedAssetCount() int {
	b.graphMu.Lock()
	defer b.graphMu.Unlock()
	return len(b.loadedAssets)
}

// Stop releases the watcher and the notifier. In one-shot mode with
// killWorkers set it also tears down the shared worker farm. Safe to call
// more than once.
func (b *Bundler) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		_ = b.watch.Close()
		b.watchWG.Wait()
		_ = b.notifier.Close()
		if b.opts.KillWorkers && !b.opts.Watch {
			farm.EndShared()
		}
	})
}
