package asset

import (
	"strconv"
	"strings"

	"github.com/justapithecus/bale/types"
)

// RawAsset is the fallback for unknown extensions: fonts, images, anything
// binary. It emits the raw bytes under its own extension type plus a script
// stub exporting the emitted filename, so importing a binary from a script
// yields the path it was written to.
type RawAsset struct {
	AssetBase
}

// NewRaw constructs a raw binary asset.
func NewRaw(path string, pkg *types.Package, opts *types.Options) Asset {
	a := &RawAsset{AssetBase: NewBase(path, pkg, opts)}
	return a
}

func (a *RawAsset) MightHaveDependencies() bool { return false }

func (a *RawAsset) Generate() (map[string]string, error) {
	url := ContentName(a.Path())
	if public := a.Options().PublicURL; public != "" {
		url = strings.TrimSuffix(public, "/") + "/" + url
	}
	return map[string]string{
		a.Type(): a.Contents,
		"js":     "module.exports = " + strconv.Quote(url) + ";",
	}, nil
}

var _ Asset = (*RawAsset)(nil)
