// Package cache persists per-asset processed results keyed by source path,
// stamped with mtime, size, and the option fingerprint.
//
// The cache is an accelerator, never a source of truth: misses fall through
// silently, and read/write failures are logged and treated as misses/no-ops.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/bale/log"
	"github.com/justapithecus/bale/types"
)

// Cache is the coordinator-facing contract. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Read returns the stored result for path, or nil when the entry is
	// absent or stale (mtime, size, or option fingerprint mismatch).
	Read(path string) *types.ProcessedResult
	// Write stores a result with the file's current stamps. Best-effort.
	Write(path string, result *types.ProcessedResult)
	// Invalidate deletes the entry for path.
	Invalidate(path string)
}

// entry is the persisted cache record.
type entry struct {
	Version     string                 `msgpack:"version"`
	Mtime       int64                  `msgpack:"mtime"`
	Size        int64                  `msgpack:"size"`
	Fingerprint string                 `msgpack:"fingerprint"`
	Result      *types.ProcessedResult `msgpack:"result"`
}

// key hashes an asset path into a cache entry name.
func key(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// stamp returns the current mtime/size of path.
func stamp(path string) (mtime, size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return info.ModTime().UnixNano(), info.Size(), nil
}

// FSCache stores entries as one msgpack file per asset under dir.
type FSCache struct {
	dir         string
	fingerprint string
	logger      *log.Logger
}

// NewFS creates a filesystem cache rooted at dir.
func NewFS(dir string, opts *types.Options, logger *log.Logger) (*FSCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.IOError{Path: dir, Op: "mkdir", Err: err}
	}
	return &FSCache{dir: dir, fingerprint: opts.Fingerprint(), logger: logger}, nil
}

func (c *FSCache) entryPath(path string) string {
	return filepath.Join(c.dir, key(path))
}

// Read implements Cache.
func (c *FSCache) Read(path string) *types.ProcessedResult {
	data, err := os.ReadFile(c.entryPath(path))
	if err != nil {
		return nil
	}

	var e entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]any{
			"path": path, "error": err.Error(),
		})
		c.Invalidate(path)
		return nil
	}

	mtime, size, err := stamp(path)
	if err != nil {
		return nil
	}
	if e.Version != types.Version || e.Mtime != mtime || e.Size != size || e.Fingerprint != c.fingerprint {
		return nil
	}
	return e.Result
}

// Write implements Cache.
func (c *FSCache) Write(path string, result *types.ProcessedResult) {
	mtime, size, err := stamp(path)
	if err != nil {
		return
	}
	data, err := msgpack.Marshal(entry{
		Version:     types.Version,
		Mtime:       mtime,
		Size:        size,
		Fingerprint: c.fingerprint,
		Result:      result,
	})
	if err != nil {
		c.logger.Warn("cache encode failed", map[string]any{"path": path, "error": err.Error()})
		return
	}
	if err := os.WriteFile(c.entryPath(path), data, 0o644); err != nil {
		c.logger.Warn("cache write failed", map[string]any{"path": path, "error": err.Error()})
	}
}

// Invalidate implements Cache.
func (c *FSCache) Invalidate(path string) {
	_ = os.Remove(c.entryPath(path))
}

// Clean removes every entry under dir. Used by `bale cache clean`.
func Clean(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &types.IOError{Path: dir, Op: "readdir", Err: err}
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return &types.IOError{Path: e.Name(), Op: "remove", Err: err}
		}
	}
	return nil
}

var _ Cache = (*FSCache)(nil)

// Nop is a disabled cache: every read misses, writes are dropped.
type Nop struct{}

func (Nop) Read(string) *types.ProcessedResult   { return nil }
func (Nop) Write(string, *types.ProcessedResult) {}
func (Nop) Invalidate(string)                    {}

var _ Cache = Nop{}
