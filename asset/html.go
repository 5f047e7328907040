package asset

import (
	"regexp"
	"strings"

	"github.com/justapithecus/bale/types"
)

// htmlRefRe matches src= and href= attribute values. Attribute scanning is
// sufficient for reference rewriting; the markup itself is emitted as-is.
var htmlRefRe = regexp.MustCompile(`(src|href)\s*=\s*["']([^"']+)["']`)

// HTMLAsset handles markup entries. Every src/href reference goes through
// AddURLDependency, so each referenced script, sheet, or binary roots its
// own bundle and the emitted markup points at the output filenames.
type HTMLAsset struct {
	AssetBase
}

// NewHTML constructs a markup asset.
func NewHTML(path string, pkg *types.Package, opts *types.Options) Asset {
	a := &HTMLAsset{AssetBase: NewBase(path, pkg, opts)}
	a.SetType("html")
	return a
}

func (a *HTMLAsset) MightHaveDependencies() bool {
	return strings.Contains(a.Contents, "src") || strings.Contains(a.Contents, "href")
}

func (a *HTMLAsset) CollectDependencies() error {
	var out []string
	for i, line := range strings.Split(a.Contents, "\n") {
		line = htmlRefRe.ReplaceAllStringFunc(line, func(match string) string {
			m := htmlRefRe.FindStringSubmatch(match)
			replaced := a.AddURLDependency(m[2], a.Path(), &types.SourceLocation{Line: i + 1, Column: 1})
			if replaced == m[2] {
				return match
			}
			return m[1] + `="` + replaced + `"`
		})
		out = append(out, line)
	}
	a.AST = strings.Join(out, "\n")
	return nil
}

func (a *HTMLAsset) Generate() (map[string]string, error) {
	html := a.Contents
	if rewritten, ok := a.AST.(string); ok {
		html = rewritten
	}
	return map[string]string{"html": html}, nil
}

var _ Asset = (*HTMLAsset)(nil)
