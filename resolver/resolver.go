// Package resolver maps (specifier, importer) pairs to absolute file paths
// and the metadata of the package that owns them.
//
// Resolution is node-style: relative paths resolve against the importer's
// directory, bare specifiers walk node_modules directories upward, package
// manifests are honored for main/module/alias, and missing extensions are
// inferred from the registered extensions table.
package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/justapithecus/bale/types"
)

// Resolver resolves module specifiers. Safe for concurrent use.
type Resolver struct {
	extensions []string

	mu       sync.Mutex
	pkgCache map[string]*types.Package
}

// New creates a resolver that infers the given extensions (with dots), in
// a deterministic order: script extensions first, then .json, then the
// rest sorted.
func New(extensions []string) *Resolver {
	exts := make([]string, len(extensions))
	copy(exts, extensions)
	rank := func(e string) int {
		switch e {
		case ".js":
			return 0
		case ".jsx", ".mjs", ".cjs":
			return 1
		case ".json":
			return 2
		}
		return 3
	}
	sort.Slice(exts, func(i, j int) bool {
		if rank(exts[i]) != rank(exts[j]) {
			return rank(exts[i]) < rank(exts[j])
		}
		return exts[i] < exts[j]
	})
	return &Resolver{
		extensions: exts,
		pkgCache:   make(map[string]*types.Package),
	}
}

// Resolve maps a specifier, as written in importer, to an absolute path and
// the owning package. Fails with *types.ResolveError.
func (r *Resolver) Resolve(specifier, importer string) (string, *types.Package, error) {
	dir := filepath.Dir(importer)
	if importer == "" {
		dir, _ = os.Getwd()
	}

	var path string
	var err error
	switch {
	case filepath.IsAbs(specifier):
		path, err = r.resolveFile(specifier)
	case strings.HasPrefix(specifier, "."):
		path, err = r.resolveFile(filepath.Join(dir, specifier))
	default:
		path, err = r.resolveModule(specifier, dir)
	}
	if err != nil {
		return "", nil, &types.ResolveError{Specifier: specifier, Importer: importer, Err: err}
	}

	path, err = filepath.Abs(path)
	if err != nil {
		return "", nil, &types.ResolveError{Specifier: specifier, Importer: importer, Err: err}
	}

	pkg := r.findPackage(filepath.Dir(path))
	return path, pkg, nil
}

// resolveFile resolves a path that may be missing its extension or may be
// a directory.
func (r *Resolver) resolveFile(candidate string) (string, error) {
	if info, err := os.Stat(candidate); err == nil {
		if !info.IsDir() {
			return candidate, nil
		}
		return r.resolveDir(candidate)
	}
	for _, ext := range r.extensions {
		if withExt := candidate + ext; isFile(withExt) {
			return withExt, nil
		}
	}
	return "", os.ErrNotExist
}

// resolveDir resolves a directory through its manifest entry points or an
// index file.
func (r *Resolver) resolveDir(dir string) (string, error) {
	if pkg := r.readPackage(dir); pkg != nil {
		for _, entry := range []string{pkg.Module, pkg.Main} {
			if entry == "" {
				continue
			}
			if resolved, err := r.resolveFile(filepath.Join(dir, entry)); err == nil {
				return resolved, nil
			}
		}
	}
	for _, ext := range r.extensions {
		if index := filepath.Join(dir, "index"+ext); isFile(index) {
			return index, nil
		}
	}
	return "", os.ErrNotExist
}

// resolveModule resolves a bare specifier by walking node_modules
// directories from dir upward, honoring manifest aliases along the way.
func (r *Resolver) resolveModule(specifier, dir string) (string, error) {
	if pkg := r.findPackage(dir); pkg != nil {
		if target, ok := pkg.Alias[specifier]; ok {
			if strings.HasPrefix(target, ".") {
				return r.resolveFile(filepath.Join(pkg.Dir, target))
			}
			specifier = target
		}
	}

	for d := dir; ; d = filepath.Dir(d) {
		candidate := filepath.Join(d, "node_modules", specifier)
		if resolved, err := r.resolveFile(candidate); err == nil {
			return resolved, nil
		}
		if d == filepath.Dir(d) {
			break
		}
	}
	return "", os.ErrNotExist
}

// findPackage walks upward from dir to the nearest package manifest.
func (r *Resolver) findPackage(dir string) *types.Package {
	for d := dir; ; d = filepath.Dir(d) {
		if pkg := r.readPackage(d); pkg != nil {
			return pkg
		}
		if d == filepath.Dir(d) {
			return nil
		}
	}
}

// readPackage loads and caches the manifest in dir, nil when absent or
// malformed (a broken manifest is not a resolution failure).
func (r *Resolver) readPackage(dir string) *types.Package {
	r.mu.Lock()
	if pkg, ok := r.pkgCache[dir]; ok {
		r.mu.Unlock()
		return pkg
	}
	r.mu.Unlock()

	var pkg *types.Package
	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		var p types.Package
		if json.Unmarshal(data, &p) == nil {
			p.Dir = dir
			pkg = &p
		}
	}

	r.mu.Lock()
	r.pkgCache[dir] = pkg
	r.mu.Unlock()
	return pkg
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
