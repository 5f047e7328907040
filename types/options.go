package types

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// Options is the full option set for a build. The zero value is not usable;
// call Normalize to apply defaults before handing it to the bundler.
//
// Tri-state fields (watch, cache, ...) use pointers so "unset" can be told
// apart from an explicit false; Normalize collapses them to the plain bool
// fields the rest of the code reads.
type Options struct {
	// OutDir is the output directory for emitted bundles.
	OutDir string `msgpack:"out_dir"`
	// PublicURL is the URL prefix embedded in emitted references.
	PublicURL string `msgpack:"public_url"`
	// CacheDir is the directory holding cache entries (fs backend).
	CacheDir string `msgpack:"cache_dir"`
	// Watch enables the watcher and rebuild loop.
	Watch bool `msgpack:"watch"`
	// Cache enables the persistent processed-result cache.
	Cache bool `msgpack:"cache"`
	// KillWorkers tears down the worker farm after a one-shot build.
	KillWorkers bool `msgpack:"kill_workers"`
	// Minify instructs packagers to minify output.
	Minify bool `msgpack:"minify"`
	// HMR enables the update-notifier socket.
	HMR bool `msgpack:"hmr"`
	// HMRPort is the update-notifier listen port (0 = ephemeral).
	HMRPort int `msgpack:"hmr_port"`
	// Production marks a production build.
	Production bool `msgpack:"production"`
	// LogLevel is 0=silent, 1=errors, 2=info, 3=verbose.
	LogLevel int `msgpack:"log_level"`
	// Workers is the worker farm size (0 = logical CPU count).
	Workers int `msgpack:"workers"`
	// Extensions maps file extension (with dot) to asset variant name.
	// Workers reconstitute their parser registry from this table.
	Extensions map[string]string `msgpack:"extensions"`

	// Unset-able inputs, collapsed by Normalize.
	WatchSet      *bool `msgpack:"-"`
	CacheSet      *bool `msgpack:"-"`
	MinifySet     *bool `msgpack:"-"`
	HMRSet        *bool `msgpack:"-"`
	ProductionSet *bool `msgpack:"-"`
}

// Normalize applies defaults in place: outDir ./dist, publicURL derived from
// outDir, production inferred from NODE_ENV, watch on unless production,
// minify and hmr following production and watch respectively.
func (o *Options) Normalize() {
	if o.OutDir == "" {
		o.OutDir = "dist"
	}
	if abs, err := filepath.Abs(o.OutDir); err == nil {
		o.OutDir = abs
	}
	if o.CacheDir == "" {
		o.CacheDir = filepath.Join(filepath.Dir(o.OutDir), ".cache")
	}
	if o.ProductionSet != nil {
		o.Production = *o.ProductionSet
	} else {
		o.Production = os.Getenv("NODE_ENV") == "production"
	}
	if o.PublicURL == "" {
		o.PublicURL = "/" + filepath.Base(o.OutDir)
	}
	if o.WatchSet != nil {
		o.Watch = *o.WatchSet
	} else {
		o.Watch = !o.Production
	}
	if o.CacheSet != nil {
		o.Cache = *o.CacheSet
	} else {
		o.Cache = true
	}
	if o.MinifySet != nil {
		o.Minify = *o.MinifySet
	} else {
		o.Minify = o.Production
	}
	if o.HMRSet != nil {
		o.HMR = *o.HMRSet
	} else {
		o.HMR = o.Watch
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
}

// Fingerprint hashes the subset of options that affect transformation
// output. A cache entry written under a different fingerprint is stale.
func (o *Options) Fingerprint() string {
	h := md5.New()
	if o.Minify {
		h.Write([]byte("minify"))
	}
	if o.Production {
		h.Write([]byte("production"))
	}
	h.Write([]byte(o.PublicURL))

	exts := make([]string, 0, len(o.Extensions))
	for ext, variant := range o.Extensions {
		exts = append(exts, ext+"="+variant)
	}
	sort.Strings(exts)
	for _, e := range exts {
		h.Write([]byte{0x00})
		h.Write([]byte(e))
	}
	return hex.EncodeToString(h.Sum(nil))
}
