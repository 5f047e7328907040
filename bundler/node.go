// Package bundler implements the bundling engine: the asset dependency
// graph with incremental invalidation, the load pipeline over the worker
// farm and cache, the bundle-tree builder with lowest-common-ancestor
// hoisting of shared assets, packaging, and the watch/rebuild loop.
package bundler

import (
	"github.com/justapithecus/bale/asset"
	"github.com/justapithecus/bale/types"
)

// loadState tracks one node's progress through the load pipeline. The
// explicit state (instead of a bare processed flag) is what breaks cycles:
// it is set to loading before recursion, so re-entry returns immediately.
type loadState int

const (
	loadNotStarted loadState = iota
	loadInProgress
	loadDone
)

// Node is an asset registered in the dependency graph, together with its
// graph- and bundle-membership state. Workers never see a Node; they see
// only (path, package, options).
type Node struct {
	Asset asset.Asset

	state loadState

	// Deps is the ordered dependency list from the last processing run.
	Deps []types.DependencyRecord
	// DepAssets maps specifier → resolved child node, parallel to Deps.
	DepAssets map[string]*Node

	// ParentBundle is the bundle this node was first allocated to (or
	// hoisted into); nil until tree construction reaches it.
	ParentBundle *Bundle
	// Bundles is the set of bundles the node is written into. May exceed
	// one when the asset emits artifacts for multiple output types.
	Bundles map[*Bundle]struct{}
	// ParentDeps is the set of incoming dependency edges, keyed by
	// specifier, for reverse lookup.
	ParentDeps map[string]types.DependencyRecord
}

func newNode(a asset.Asset) *Node {
	return &Node{
		Asset:      a,
		DepAssets:  make(map[string]*Node),
		Bundles:    make(map[*Bundle]struct{}),
		ParentDeps: make(map[string]types.DependencyRecord),
	}
}

// Path returns the node's absolute asset path.
func (n *Node) Path() string { return n.Asset.Base().Path() }

// ID returns the asset's stable per-process id.
func (n *Node) ID() int { return n.Asset.Base().ID }

// Invalidate clears all processing state so the next load runs the full
// pipeline again.
func (n *Node) Invalidate() {
	n.Asset.Base().Invalidate()
	n.state = loadNotStarted
	n.Deps = nil
	n.DepAssets = make(map[string]*Node)
}

// InvalidateBundle clears only bundle membership. Called on every asset
// between graph stabilization and bundle-tree construction so the builder
// runs from a clean slate.
func (n *Node) InvalidateBundle() {
	n.ParentBundle = nil
	n.Bundles = make(map[*Bundle]struct{})
	n.ParentDeps = make(map[string]types.DependencyRecord)
}
