package bundler

import (
	"path/filepath"
	"strings"
)

// Bundle is one node of the output tree: an output file, its member
// assets, and its tree edges. Bundles are constructed fresh on each build
// and do not persist across rebuilds.
type Bundle struct {
	// Type is the output type ("js", "css", ...).
	Type string
	// Name is the output filename, derived from the entry asset.
	Name string
	// EntryAsset roots the bundle.
	EntryAsset *Node

	// ParentBundle and ChildBundles are the tree edges.
	ParentBundle *Bundle
	ChildBundles []*Bundle
	// SiblingBundles maps type → the bundle produced alongside this one
	// from the same entry but emitting a different output type.
	SiblingBundles map[string]*Bundle

	assets   []*Node
	assetSet map[*Node]struct{}
}

func newBundle(typ, name string, entry *Node) *Bundle {
	return &Bundle{
		Type:           typ,
		Name:           name,
		EntryAsset:     entry,
		SiblingBundles: make(map[string]*Bundle),
		assetSet:       make(map[*Node]struct{}),
	}
}

// AddAsset appends n to the bundle, preserving first-add order.
func (b *Bundle) AddAsset(n *Node) {
	if _, ok := b.assetSet[n]; ok {
		return
	}
	b.assetSet[n] = struct{}{}
	b.assets = append(b.assets, n)
}

// RemoveAsset detaches n, keeping the order of the remaining members.
func (b *Bundle) RemoveAsset(n *Node) {
	if _, ok := b.assetSet[n]; !ok {
		return
	}
	delete(b.assetSet, n)
	for i, a := range b.assets {
		if a == n {
			b.assets = append(b.assets[:i], b.assets[i+1:]...)
			break
		}
	}
}

// Assets returns the members in insertion order.
func (b *Bundle) Assets() []*Node {
	out := make([]*Node, len(b.assets))
	copy(out, b.assets)
	return out
}

// HasAsset reports membership.
func (b *Bundle) HasAsset(n *Node) bool {
	_, ok := b.assetSet[n]
	return ok
}

// CreateChildBundle creates a bundle under b, rooted at entry.
func (b *Bundle) CreateChildBundle(typ, name string, entry *Node) *Bundle {
	child := newBundle(typ, name, entry)
	child.ParentBundle = b
	b.ChildBundles = append(b.ChildBundles, child)
	return child
}

// GetSiblingBundle returns the bundle alongside b that emits the given
// type, creating it on demand as a child carrying b's basename with the
// extension swapped.
func (b *Bundle) GetSiblingBundle(typ string) *Bundle {
	if typ == "" || typ == b.Type {
		return b
	}
	if sibling, ok := b.SiblingBundles[typ]; ok {
		return sibling
	}
	sibling := b.CreateChildBundle(typ, swapExt(b.Name, typ), b.EntryAsset)
	b.SiblingBundles[typ] = sibling
	return sibling
}

func swapExt(name, typ string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "." + typ
}
