// Package packager turns a constructed bundle into its output file: a
// type-specific emitter concatenates (or wraps) the member assets' outputs
// and the registry handles writing, content hashing, and unchanged-output
// skipping.
package packager

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/justapithecus/bale/types"
)

// Module is one member asset's contribution to a bundle.
type Module struct {
	// ID is the asset's per-process numeric id.
	ID int
	// Code is the asset's generated artifact for the bundle's type.
	Code string
	// Deps maps specifier to the resolved reference, in discovery order
	// (Order holds the specifiers).
	Deps  map[string]Ref
	Order []string
}

// Ref points a specifier at its resolved module. For dynamic edges it
// also names the child bundle rooting the target.
type Ref struct {
	// ID is the resolved asset's id.
	ID int
	// BundleName names the child bundle to load first, for dynamic edges.
	BundleName string
}

// Bundle is the packager-facing view of one output bundle.
type Bundle struct {
	// Type is the output type ("js", "css", ...).
	Type string
	// Name is the output filename.
	Name string
	// EntryID is the entry asset's id.
	EntryID int
	// Modules are the member contributions, in bundle insertion order.
	Modules []Module
	// PublicURL prefixes embedded cross-bundle references.
	PublicURL string
	// Minify asks the emitter to compact its output.
	Minify bool
}

// Packager emits a bundle's content to w.
type Packager interface {
	Package(w io.Writer, b *Bundle) error
}

// Registry maps output types to packagers. Frozen once bundling starts.
type Registry struct {
	mu     sync.RWMutex
	m      map[string]Packager
	locked bool
}

// NewRegistry returns a registry preloaded with the built-in packagers.
func NewRegistry() *Registry {
	return &Registry{m: map[string]Packager{
		"js":   JSPackager{},
		"css":  ConcatPackager{Separator: "\n"},
		"html": ConcatPackager{Separator: "\n"},
	}}
}

// Register adds or replaces the packager for an output type.
func (r *Registry) Register(typ string, p Packager) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return types.ErrConfigLocked
	}
	r.m[typ] = p
	return nil
}

// Lock freezes the registry. Called when bundling starts.
func (r *Registry) Lock() {
	r.mu.Lock()
	r.locked = true
	r.mu.Unlock()
}

// Get returns the packager for an output type; unknown types get the raw
// pass-through packager.
func (r *Registry) Get(typ string) Packager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.m[typ]; ok {
		return p
	}
	return RawPackager{}
}

// WriteBundle packages b into outDir/b.Name and returns the content hash
// plus the number of bytes written. When the hash matches
// previousHashes[b.Name], the file on disk is already current and the
// write is skipped (written == 0).
func (r *Registry) WriteBundle(b *Bundle, outDir string, previousHashes map[string]string) (hash string, written int64, err error) {
	var buf bytes.Buffer
	if err := r.Get(b.Type).Package(&buf, b); err != nil {
		return "", 0, err
	}

	sum := md5.Sum(buf.Bytes())
	hash = hex.EncodeToString(sum[:])
	if previousHashes != nil && previousHashes[b.Name] == hash {
		return hash, 0, nil
	}

	outPath := filepath.Join(outDir, b.Name)
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return "", 0, &types.IOError{Path: outPath, Op: "write", Err: err}
	}
	return hash, int64(buf.Len()), nil
}
