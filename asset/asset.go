// Package asset implements the asset contract: loading a source file,
// parsing it, collecting its dependency edges, transforming it, and
// generating output artifacts plus a content hash.
//
// Variants (script, stylesheet, markup, binary) embed AssetBase and override the
// stages they care about; Process drives the full pipeline through the
// Asset interface so overrides dispatch correctly.
package asset

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/justapithecus/bale/types"
)

// Asset is the capability set every variant implements.
type Asset interface {
	// Base returns the shared state embedded in the variant.
	Base() *AssetBase

	// Load reads the raw contents from disk.
	Load() (string, error)
	// Parse turns contents into a variant-specific ast.
	Parse(contents string) (any, error)
	// MightHaveDependencies is a fast pre-check that gates parse + collect.
	MightHaveDependencies() bool
	// CollectDependencies populates the dependency map from the ast.
	CollectDependencies() error
	// Transform mutates the ast with user-configured transforms.
	Transform() error
	// Generate emits the output artifacts, keyed by output type.
	Generate() (map[string]string, error)
}

// AssetBase holds the state shared by every asset variant.
type AssetBase struct {
	path string
	typ  string
	pkg  *types.Package
	opts *types.Options

	// ID is the stable per-process numeric id, assigned by the graph.
	ID int

	// Contents is the raw source, nil-equivalent until loaded.
	Contents string
	loaded   bool

	// AST is variant-specific parse output.
	AST      any
	parsed   bool
	ASTDirty bool

	collected bool

	// Generated maps output type to emitted artifact once processed.
	Generated map[string]string
	// Hash is the hex digest of the concatenated outputs.
	Hash string

	// Dependencies is the ordered specifier → record map.
	Dependencies *DepMap
}

// NewBase constructs the shared state for an asset at path. The type tag is
// derived from the extension unless the variant overrides it afterwards.
func NewBase(path string, pkg *types.Package, opts *types.Options) AssetBase {
	return AssetBase{
		path:         path,
		typ:          extType(path),
		pkg:          pkg,
		opts:         opts,
		Dependencies: NewDepMap(),
	}
}

func extType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "bin"
	}
	return ext[1:]
}

// Base returns the shared state; satisfies the Asset interface for every
// variant that embeds AssetBase.
func (b *AssetBase) Base() *AssetBase { return b }

// Path returns the absolute canonical path of the asset.
func (b *AssetBase) Path() string { return b.path }

// Type returns the output type tag ("js", "css", ...).
func (b *AssetBase) Type() string { return b.typ }

// SetType overrides the extension-derived type tag.
func (b *AssetBase) SetType(t string) { b.typ = t }

// Package returns the owning package metadata, may be nil.
func (b *AssetBase) Package() *types.Package { return b.pkg }

// Options returns the build options.
func (b *AssetBase) Options() *types.Options { return b.opts }

// Processed reports whether Generate has run since the last invalidation.
func (b *AssetBase) Processed() bool { return b.Generated != nil && b.Hash != "" }

// Load reads the file from disk. Variants needing decode hooks override.
func (b *AssetBase) Load() (string, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return "", &types.IOError{Path: b.path, Op: "read", Err: err}
	}
	return string(data), nil
}

// Parse is a no-op by default; variants with a real ast override.
func (b *AssetBase) Parse(contents string) (any, error) { return nil, nil }

// MightHaveDependencies defaults to true; leaf variants override.
func (b *AssetBase) MightHaveDependencies() bool { return true }

// CollectDependencies is a no-op by default.
func (b *AssetBase) CollectDependencies() error { return nil }

// Transform is a no-op by default.
func (b *AssetBase) Transform() error { return nil }

// Generate defaults to emitting the raw contents under the primary type.
func (b *AssetBase) Generate() (map[string]string, error) {
	return map[string]string{b.typ: b.Contents}, nil
}

// AddDependency records a dependency edge, preserving discovery order.
func (b *AssetBase) AddDependency(rec types.DependencyRecord) {
	b.Dependencies.Add(rec)
}

// schemePattern matches url references with an explicit scheme
// (http:, https:, data:, mailto:, ...). Those pass through untouched.
var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// AddURLDependency registers a url-shaped reference found at from (a file
// path whose directory anchors relative resolution) and returns the string
// to emit in its place.
//
// Scheme-prefixed and empty urls are returned unchanged. Anything else is
// registered as a dynamic dependency on the relative path and replaced by
// the deterministic output filename the referenced asset will be emitted
// under: md5(absolutePath) + extension.
func (b *AssetBase) AddURLDependency(url, from string, loc *types.SourceLocation) string {
	if url == "" || schemePattern.MatchString(url) {
		return url
	}
	resolved := filepath.Join(filepath.Dir(from), url)
	b.AddDependency(types.DependencyRecord{Name: specName(url), Dynamic: true, Loc: loc})
	return ContentName(resolved)
}

// ContentName is the deterministic output filename for the asset at path:
// md5 of the absolute path plus the original extension.
func ContentName(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:]) + filepath.Ext(path)
}

// BundleName derives the output filename this asset roots a bundle under.
// Entries keep their basename (rewritten to the given type); everything
// else is content-addressed by path.
func (b *AssetBase) BundleName(typ string, isEntry bool) string {
	if isEntry {
		base := filepath.Base(b.path)
		ext := filepath.Ext(base)
		return base[:len(base)-len(ext)] + "." + typ
	}
	sum := md5.Sum([]byte(b.path))
	return hex.EncodeToString(sum[:]) + "." + typ
}

// Invalidate clears all processing state so the next Process starts from
// scratch.
func (b *AssetBase) Invalidate() {
	b.Contents = ""
	b.loaded = false
	b.AST = nil
	b.parsed = false
	b.ASTDirty = false
	b.collected = false
	b.Generated = nil
	b.Hash = ""
	b.Dependencies = NewDepMap()
}

// Process runs the full pipeline on a, caching each intermediate so
// repeated calls are idempotent. It returns the pure result the worker
// farm transports back to the coordinator.
func Process(a Asset) (*types.ProcessedResult, error) {
	b := a.Base()

	if !b.loaded {
		contents, err := a.Load()
		if err != nil {
			return nil, err
		}
		b.Contents = contents
		b.loaded = true
	}

	if b.Generated == nil {
		if a.MightHaveDependencies() {
			if !b.parsed {
				ast, err := a.Parse(b.Contents)
				if err != nil {
					return nil, err
				}
				b.AST = ast
				b.parsed = true
			}
			if !b.collected {
				if err := a.CollectDependencies(); err != nil {
					return nil, err
				}
				b.collected = true
			}
		}

		if err := a.Transform(); err != nil {
			return nil, &types.TransformError{Path: b.path, Err: err}
		}

		generated, err := a.Generate()
		if err != nil {
			return nil, err
		}
		b.Generated = generated
	}

	if b.Hash == "" {
		b.Hash = hashGenerated(b.Generated)
	}

	return &types.ProcessedResult{
		Generated:    b.Generated,
		Hash:         b.Hash,
		Dependencies: b.Dependencies.Records(),
	}, nil
}

// hashGenerated digests the concatenated outputs in type order so the hash
// is stable across runs.
func hashGenerated(generated map[string]string) string {
	keys := make([]string, 0, len(generated))
	for k := range generated {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := md5.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s\x00%s\x00", k, generated[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
