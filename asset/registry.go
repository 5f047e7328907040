package asset

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justapithecus/bale/types"
)

// Constructor builds an asset variant for a path.
type Constructor func(path string, pkg *types.Package, opts *types.Options) Asset

// variants maps variant name → constructor. Names, not function values,
// travel in the options table so workers can reconstitute a registry.
var variants = map[string]Constructor{
	"js":   NewJS,
	"json": NewJSON,
	"css":  NewCSS,
	"html": NewHTML,
	"raw":  NewRaw,
}

// Registry maps file extensions to asset variants. It is frozen once
// bundling starts; registration after that fails with ErrConfigLocked.
type Registry struct {
	mu     sync.RWMutex
	exts   map[string]string
	locked bool
}

// NewRegistry returns a registry preloaded with the built-in variants.
func NewRegistry() *Registry {
	return &Registry{exts: map[string]string{
		".js":   "js",
		".jsx":  "js",
		".mjs":  "js",
		".cjs":  "js",
		".json": "json",
		".css":  "css",
		".less": "css",
		".html": "html",
		".htm":  "html",
	}}
}

// FromExtensions reconstitutes a registry from an options extensions table.
// Workers use this so their dispatch matches the coordinator's.
func FromExtensions(exts map[string]string) *Registry {
	m := make(map[string]string, len(exts))
	for k, v := range exts {
		m[k] = v
	}
	return &Registry{exts: m, locked: true}
}

// RegisterExtension adds or replaces the variant for an extension.
func (r *Registry) RegisterExtension(ext, variant string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return types.ErrConfigLocked
	}
	if _, ok := variants[variant]; !ok {
		return fmt.Errorf("unknown asset variant %q", variant)
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.exts[ext] = variant
	return nil
}

// Lock freezes the registry. Called when bundling starts.
func (r *Registry) Lock() {
	r.mu.Lock()
	r.locked = true
	r.mu.Unlock()
}

// Extensions returns a copy of the extensions table for embedding in the
// build options (and therefore in the option fingerprint).
func (r *Registry) Extensions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]string, len(r.exts))
	for k, v := range r.exts {
		m[k] = v
	}
	return m
}

// SupportedExtensions returns the registered extensions, used by the
// resolver for extension inference.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.exts))
	for k := range r.exts {
		exts = append(exts, k)
	}
	return exts
}

// Get dispatches on the file extension; unknown extensions fall back to
// the raw binary variant.
func (r *Registry) Get(path string, pkg *types.Package, opts *types.Options) Asset {
	r.mu.RLock()
	name, ok := r.exts[strings.ToLower(filepath.Ext(path))]
	r.mu.RUnlock()
	if !ok {
		name = "raw"
	}
	return variants[name](path, pkg, opts)
}
