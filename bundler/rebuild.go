package bundler

import (
	"context"
	"time"
)

// debounceWindow batches change events that arrive in one editor save
// burst into a single rebuild.
const debounceWindow = 100 * time.Millisecond

// StartWatching wires the watcher's event stream into the rebuild loop.
// Changes for unknown paths are ignored; known paths are invalidated (the
// cache entry included) and a coalesced rebuild is scheduled: changes
// arriving while a build is in flight queue up into the next one.
func (b *Bundler) StartWatching(ctx context.Context) {
	b.watchWG.Add(2)

	go func() {
		defer b.watchWG.Done()
		pending := make(map[string]struct{})
		timer := time.NewTimer(debounceWindow)
		if !timer.Stop() {
			<-timer.C
		}

		for {
			select {
			case path, ok := <-b.watch.Events():
				if !ok {
					return
				}
				pending[path] = struct{}{}
				timer.Reset(debounceWindow)
			case <-timer.C:
				paths := make([]string, 0, len(pending))
				for p := range pending {
					paths = append(paths, p)
				}
				pending = make(map[string]struct{})
				b.onChanges(paths)
			case <-b.stopCh:
				return
			}
		}
	}()

	go func() {
		defer b.watchWG.Done()
		for {
			select {
			case <-b.rebuildCh:
				b.rebuild(ctx)
			case <-b.stopCh:
				return
			}
		}
	}()
}

// onChanges invalidates the assets affected by the changed paths (the
// asset at the path itself, or the owners of an inlined file) and
// schedules a rebuild when anything was hit.
func (b *Bundler) onChanges(paths []string) {
	b.graphMu.Lock()
	var affected []*Node
	for _, p := range paths {
		if n, ok := b.loadedAssets[p]; ok {
			affected = append(affected, n)
		}
		affected = append(affected, b.includedEdges[p]...)
	}
	b.graphMu.Unlock()

	if len(affected) == 0 {
		return
	}

	b.buildMu.Lock()
	for _, n := range affected {
		path := n.Path()
		b.logger.Debug("asset changed", map[string]any{"path": path})
		n.Invalidate()
		b.cache.Invalidate(path)
		b.changed[path] = n
	}
	b.buildMu.Unlock()

	// Coalesce: a rebuild already queued absorbs this change set.
	select {
	case b.rebuildCh <- struct{}{}:
	default:
	}
}

func (b *Bundler) rebuild(ctx context.Context) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	b.collector.IncRebuild()
	// Build errors were logged and broadcast inside bundleLocked; in watch
	// mode the loop keeps running and the next change retries.
	_, _ = b.bundleLocked(ctx)
}
