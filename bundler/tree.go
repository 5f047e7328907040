package bundler

import "github.com/justapithecus/bale/types"

// createBundleTree allocates n (and its subtree) to output bundles.
//
// The first visit of an asset assigns it to the current traversal bundle's
// sibling of matching type. A later visit from a different bundle hoists
// the asset to the lowest common ancestor of the two bundles, provided the
// types match; either way a revisit never recurses, since the subtree was
// traversed under the first bundle.
func (b *Bundler) createBundleTree(n *Node, dep *types.DependencyRecord, bundle *Bundle) *Bundle {
	if dep != nil {
		n.ParentDeps[dep.Name] = *dep
	}

	if n.ParentBundle != nil {
		if n.ParentBundle != bundle {
			lca := findCommonAncestor(bundle, n.ParentBundle)
			if n.ParentBundle != lca && n.ParentBundle.Type == lca.Type {
				moveAssetToBundle(n, lca)
			}
		}
		return bundle
	}

	base := n.Asset.Base()
	switch {
	case bundle == nil:
		bundle = newBundle(base.Type(), base.BundleName(base.Type(), true), n)
	case dep != nil && dep.Dynamic:
		bundle = bundle.CreateChildBundle(base.Type(), base.BundleName(base.Type(), false), n)
		b.bundleRoots[n] = bundle
	}

	sibling := bundle.GetSiblingBundle(base.Type())
	sibling.AddAsset(n)
	n.Bundles[sibling] = struct{}{}

	// An asset contributing artifact in the traversal bundle's own type is
	// written there too (e.g. the script stub of a stylesheet).
	if sibling != bundle && base.Generated[bundle.Type] != "" {
		bundle.AddAsset(n)
		n.Bundles[bundle] = struct{}{}
	}

	n.ParentBundle = bundle

	for i := range n.Deps {
		d := n.Deps[i]
		if child := n.DepAssets[d.Name]; child != nil {
			b.createBundleTree(child, &d, bundle)
		}
	}
	return bundle
}

// moveAssetToBundle re-homes n into target's siblings of the matching
// types, then recursively moves every dependency still rooted in n's old
// parent bundle.
func moveAssetToBundle(n *Node, target *Bundle) {
	oldParent := n.ParentBundle

	bundles := make([]*Bundle, 0, len(n.Bundles))
	for bd := range n.Bundles {
		bundles = append(bundles, bd)
	}
	for _, bd := range bundles {
		bd.RemoveAsset(n)
		delete(n.Bundles, bd)
		sibling := target.GetSiblingBundle(bd.Type)
		sibling.AddAsset(n)
		n.Bundles[sibling] = struct{}{}
	}
	n.ParentBundle = target

	for _, d := range n.Deps {
		if child := n.DepAssets[d.Name]; child != nil && child.ParentBundle == oldParent {
			moveAssetToBundle(child, target)
		}
	}
}

// findCommonAncestor returns the deepest bundle that is an ancestor of
// both a and b. The bundle tree has a single root, so this always
// succeeds.
func findCommonAncestor(a, b *Bundle) *Bundle {
	seen := make(map[*Bundle]struct{})
	for x := a; x != nil; x = x.ParentBundle {
		seen[x] = struct{}{}
	}
	for y := b; y != nil; y = y.ParentBundle {
		if _, ok := seen[y]; ok {
			return y
		}
	}
	return a
}
