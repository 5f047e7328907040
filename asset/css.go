package asset

import (
	"regexp"
	"strings"

	"github.com/justapithecus/bale/types"
)

var (
	cssImportRe = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]?([^'")\s;]+)['"]?\s*\)?\s*;?`)
	cssURLRe    = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)
)

// CSSAsset handles stylesheet sources, including preprocessor dialects
// registered on the same variant (.less is pass-through here; dialect
// compilers are pluggable transforms).
//
// @import references become ordinary edges so the imported sheet lands in
// the same stylesheet bundle; url(...) references go through
// AddURLDependency and are rewritten to the referenced asset's emitted
// filename. The variant also emits a script stub so importing a stylesheet
// from a script gives the importer a module identity to hot-replace.
type CSSAsset struct {
	AssetBase
}

// NewCSS constructs a stylesheet asset.
func NewCSS(path string, pkg *types.Package, opts *types.Options) Asset {
	a := &CSSAsset{AssetBase: NewBase(path, pkg, opts)}
	a.SetType("css")
	return a
}

func (a *CSSAsset) MightHaveDependencies() bool {
	return strings.Contains(a.Contents, "@import") || strings.Contains(a.Contents, "url(")
}

// CollectDependencies records @import edges, rewrites url(...) references,
// and strips @import statements from the emitted sheet (the imported
// content is concatenated into the same bundle by the packager).
func (a *CSSAsset) CollectDependencies() error {
	var out []string
	for i, line := range strings.Split(a.Contents, "\n") {
		if m := cssImportRe.FindStringSubmatch(line); m != nil {
			idx := strings.Index(line, m[0])
			a.AddDependency(types.DependencyRecord{
				Name: specName(m[1]),
				Loc:  &types.SourceLocation{Line: i + 1, Column: idx + 1},
			})
			line = strings.Replace(line, m[0], "", 1)
			if strings.TrimSpace(line) == "" {
				continue
			}
		}
		line = cssURLRe.ReplaceAllStringFunc(line, func(match string) string {
			ref := cssURLRe.FindStringSubmatch(match)[1]
			replaced := a.AddURLDependency(ref, a.Path(), &types.SourceLocation{Line: i + 1, Column: 1})
			if replaced == ref {
				return match
			}
			return `url("` + replaced + `")`
		})
		out = append(out, line)
	}
	a.AST = strings.Join(out, "\n")
	return nil
}

func (a *CSSAsset) Generate() (map[string]string, error) {
	css := a.Contents
	if rewritten, ok := a.AST.(string); ok {
		css = rewritten
	}
	return map[string]string{
		"css": css,
		"js":  "module.exports = {};",
	}, nil
}

var _ Asset = (*CSSAsset)(nil)
