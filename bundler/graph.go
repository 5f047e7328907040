package bundler

import (
	"context"
	"errors"
	"iter"
	"os"
	"sync"

	"github.com/justapithecus/bale/diag"
	"github.com/justapithecus/bale/types"
)

// resolveAsset maps (specifier, importer) to a graph node, creating and
// registering the node (and watching its path) on first resolution.
func (b *Bundler) resolveAsset(specifier, importer string) (*Node, error) {
	path, pkg, err := b.res.Resolve(specifier, importer)
	if err != nil {
		return nil, err
	}

	b.graphMu.Lock()
	if n, ok := b.loadedAssets[path]; ok {
		b.graphMu.Unlock()
		return n, nil
	}
	a := b.registry.Get(path, pkg, b.opts)
	a.Base().ID = b.nextAssetID
	b.nextAssetID++
	n := newNode(a)
	b.loadedAssets[path] = n
	b.graphMu.Unlock()

	if err := b.watch.Add(path); err != nil {
		b.logger.Warn("cannot watch asset", map[string]any{"path": path, "error": err.Error()})
	}
	return n, nil
}

// resolveDep resolves one dependency edge of n, annotating failures with a
// code frame when the record carries a source location.
func (b *Bundler) resolveDep(n *Node, dep types.DependencyRecord) (*Node, error) {
	child, err := b.resolveAsset(dep.Name, n.Path())
	if err == nil {
		return child, nil
	}

	var resolveErr *types.ResolveError
	if errors.As(err, &resolveErr) && dep.Loc != nil {
		resolveErr.Loc = dep.Loc
		if source, readErr := os.ReadFile(n.Path()); readErr == nil {
			resolveErr.Frame = diag.CodeFrame(string(source), dep.Loc)
		}
	}
	return nil, err
}

// loadAsset runs n through the pipeline: cache lookup, worker farm on
// miss, then concurrent resolution and recursive loading of the
// discovered dependencies.
//
// The load state moves to in-progress before any recursion. A re-entrant
// call, whether a dependency cycle or two branches converging on the same
// node, returns immediately: the running loader is awaited by its own
// caller chain, so the build cannot finish before the node does, and
// exactly one pipeline invocation happens per node.
func (b *Bundler) loadAsset(ctx context.Context, n *Node) error {
	b.graphMu.Lock()
	if n.state != loadNotStarted {
		b.graphMu.Unlock()
		return nil
	}
	n.state = loadInProgress
	b.graphMu.Unlock()

	err := b.processAsset(ctx, n)

	b.graphMu.Lock()
	if err == nil {
		n.state = loadDone
	} else {
		// A failed load is retried from scratch on the next build.
		n.state = loadNotStarted
	}
	b.graphMu.Unlock()
	return err
}

func (b *Bundler) processAsset(ctx context.Context, n *Node) error {
	path := n.Path()
	base := n.Asset.Base()

	result := b.cache.Read(path)
	if result != nil {
		b.collector.IncCacheHit()
	} else {
		b.collector.IncCacheMiss()
		var err error
		result, err = b.farm.Run(ctx, path, base.Package(), b.opts)
		if err != nil {
			return err
		}
	}
	b.cache.Write(path, result)
	b.collector.IncAssetProcessed()

	base.Generated = result.Generated
	base.Hash = result.Hash

	deps := append([]types.DependencyRecord(nil), result.Dependencies...)
	deps = append(deps, b.delegate.GetImplicitDependencies(n.Asset)...)
	n.Deps = deps

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for _, dep := range deps {
		if dep.IncludedInParent {
			b.registerIncluded(n, dep)
			continue
		}
		child, err := b.resolveDep(n, dep)
		if err != nil {
			fail(err)
			continue
		}

		b.graphMu.Lock()
		n.DepAssets[dep.Name] = child
		b.graphMu.Unlock()

		wg.Add(1)
		go func(child *Node) {
			defer wg.Done()
			if err := b.loadAsset(ctx, child); err != nil {
				fail(err)
			}
		}(child)
	}
	wg.Wait()
	return firstErr
}

// registerIncluded records an inlined dependency: the file is watched and
// a change to it invalidates the owning asset, but it never becomes a
// graph node of its own. Inclusions are keyed by resolved path in a
// dedicated map, so they cannot collide with real asset paths.
func (b *Bundler) registerIncluded(owner *Node, dep types.DependencyRecord) {
	path, _, err := b.res.Resolve(dep.Name, owner.Path())
	if err != nil {
		b.logger.Warn("cannot resolve inlined dependency", map[string]any{
			"specifier": dep.Name, "importer": owner.Path(), "error": err.Error(),
		})
		return
	}

	b.graphMu.Lock()
	owners := b.includedEdges[path]
	for _, o := range owners {
		if o == owner {
			b.graphMu.Unlock()
			return
		}
	}
	b.includedEdges[path] = append(owners, owner)
	b.graphMu.Unlock()

	if err := b.watch.Add(path); err != nil {
		b.logger.Warn("cannot watch inlined dependency", map[string]any{"path": path, "error": err.Error()})
	}
}

// findOrphanAssets yields the assets left without a bundle assignment
// after tree construction. Finite, not restartable.
func (b *Bundler) findOrphanAssets() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range b.loadedAssets {
			if n.ParentBundle == nil {
				if !yield(n) {
					return
				}
			}
		}
	}
}

// unloadOrphanedAssets removes orphans from the graph and the watcher,
// and drops inclusion edges whose owner went away.
func (b *Bundler) unloadOrphanedAssets() {
	count := 0
	for n := range b.findOrphanAssets() {
		path := n.Path()
		delete(b.loadedAssets, path)
		_ = b.watch.Remove(path)
		count++
	}

	for path, owners := range b.includedEdges {
		kept := owners[:0]
		for _, o := range owners {
			if _, ok := b.loadedAssets[o.Path()]; ok {
				kept = append(kept, o)
			}
		}
		if len(kept) == 0 {
			delete(b.includedEdges, path)
			_ = b.watch.Remove(path)
		} else {
			b.includedEdges[path] = kept
		}
	}

	if count > 0 {
		b.collector.AddOrphansSwept(count)
		b.logger.Debug("swept orphaned assets", map[string]any{"count": count})
	}
}
