package bundler

import (
	"github.com/justapithecus/bale/packager"
)

// packageBundles writes the bundle tree under opts.OutDir in post-order
// (children first) and returns the emitted content hashes by bundle name.
// Hashes from the previous build let unchanged outputs skip their write.
func (b *Bundler) packageBundles(root *Bundle) (map[string]string, error) {
	hashes := make(map[string]string)
	if err := b.packageBundle(root, hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

func (b *Bundler) packageBundle(bd *Bundle, hashes map[string]string) error {
	for _, child := range bd.ChildBundles {
		if err := b.packageBundle(child, hashes); err != nil {
			return err
		}
	}

	if len(bd.Assets()) == 0 {
		return nil
	}

	view := b.bundleView(bd)
	hash, written, err := b.packagers.WriteBundle(view, b.opts.OutDir, b.bundleHashes)
	if err != nil {
		return err
	}
	hashes[bd.Name] = hash
	if written > 0 {
		b.collector.IncBundleWritten(written)
		b.logger.Debug("wrote bundle", map[string]any{"name": bd.Name, "bytes": written})
	}
	return nil
}

// bundleView projects a bundle into the packager's input shape: member
// contributions in insertion order, each with its specifier mapping.
// Dynamic edges carry the child bundle's output name so parents can embed
// the filename to load.
func (b *Bundler) bundleView(bd *Bundle) *packager.Bundle {
	nodes := bd.Assets()
	modules := make([]packager.Module, 0, len(nodes))
	for _, n := range nodes {
		m := packager.Module{
			ID:   n.ID(),
			Code: n.Asset.Base().Generated[bd.Type],
			Deps: make(map[string]packager.Ref, len(n.DepAssets)),
		}
		for _, d := range n.Deps {
			child := n.DepAssets[d.Name]
			if child == nil {
				continue
			}
			ref := packager.Ref{ID: child.ID()}
			if d.Dynamic {
				if childBundle := b.bundleRoots[child]; childBundle != nil {
					ref.BundleName = childBundle.Name
				}
			}
			m.Deps[d.Name] = ref
			m.Order = append(m.Order, d.Name)
		}
		modules = append(modules, m)
	}

	return &packager.Bundle{
		Type:      bd.Type,
		Name:      bd.Name,
		EntryID:   bd.EntryAsset.ID(),
		Modules:   modules,
		PublicURL: b.opts.PublicURL,
		Minify:    b.opts.Minify,
	}
}
