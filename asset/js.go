package asset

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/justapithecus/bale/types"
)

// Script reference patterns. The collector is a line scanner, not a real
// parser: good enough for specifier extraction, and the emitted module text
// is passed through untouched.
var (
	requireRe       = regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	importFromRe    = regexp.MustCompile(`\bimport\s+(?:[\w${},*\s]+\s+from\s+)?['"]([^'"]+)['"]`)
	dynamicImportRe = regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	exportFromRe    = regexp.MustCompile(`\bexport\s+(?:\*|{[^}]*})\s+from\s+['"]([^'"]+)['"]`)
)

// JSAsset handles script sources. It collects require(), static import and
// export-from specifiers as ordinary edges and import() specifiers as
// dynamic edges, and emits its contents unchanged under the "js" type; the
// packager supplies the module wrapper.
type JSAsset struct {
	AssetBase
}

// NewJS constructs a script asset.
func NewJS(path string, pkg *types.Package, opts *types.Options) Asset {
	a := &JSAsset{AssetBase: NewBase(path, pkg, opts)}
	a.SetType("js")
	return a
}

// MightHaveDependencies skips the collector for sources with no reference
// syntax at all.
func (a *JSAsset) MightHaveDependencies() bool {
	return strings.Contains(a.Contents, "require") || strings.Contains(a.Contents, "import") ||
		strings.Contains(a.Contents, "export")
}

func (a *JSAsset) CollectDependencies() error {
	for i, line := range strings.Split(a.Contents, "\n") {
		loc := func(idx int) *types.SourceLocation {
			return &types.SourceLocation{Line: i + 1, Column: idx + 1}
		}
		for _, m := range dynamicImportRe.FindAllStringSubmatchIndex(line, -1) {
			spec := line[m[2]:m[3]]
			a.AddDependency(types.DependencyRecord{Name: spec, Dynamic: true, Loc: loc(m[0])})
		}
		for _, re := range []*regexp.Regexp{requireRe, importFromRe, exportFromRe} {
			for _, m := range re.FindAllStringSubmatchIndex(line, -1) {
				spec := line[m[2]:m[3]]
				if _, seen := a.Dependencies.Get(spec); seen {
					continue
				}
				a.AddDependency(types.DependencyRecord{Name: spec, Loc: loc(m[0])})
			}
		}
	}
	return nil
}

func (a *JSAsset) Generate() (map[string]string, error) {
	return map[string]string{"js": a.Contents}, nil
}

// JSONAsset embeds a JSON document as a script module.
type JSONAsset struct {
	AssetBase
}

// NewJSON constructs a JSON asset.
func NewJSON(path string, pkg *types.Package, opts *types.Options) Asset {
	a := &JSONAsset{AssetBase: NewBase(path, pkg, opts)}
	a.SetType("js")
	return a
}

func (a *JSONAsset) MightHaveDependencies() bool { return false }

func (a *JSONAsset) Generate() (map[string]string, error) {
	return map[string]string{"js": "module.exports = " + strings.TrimSpace(a.Contents) + ";"}, nil
}

// ensure the variants satisfy the contract
var (
	_ Asset = (*JSAsset)(nil)
	_ Asset = (*JSONAsset)(nil)
)

// specName normalizes a url-ish reference into a resolvable specifier.
func specName(ref string) string {
	if filepath.IsAbs(ref) || strings.HasPrefix(ref, ".") {
		return ref
	}
	return "./" + ref
}
