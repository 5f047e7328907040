package bundler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/bale/asset"
	"github.com/justapithecus/bale/farm"
	"github.com/justapithecus/bale/log"
	"github.com/justapithecus/bale/metrics"
	"github.com/justapithecus/bale/types"
)

func boolPtr(v bool) *bool { return &v }

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig(t *testing.T, dir, entry string) Config {
	t.Helper()
	f := farm.New(2)
	t.Cleanup(f.End)
	return Config{
		Entry: filepath.Join(dir, entry),
		Options: &types.Options{
			OutDir:        filepath.Join(dir, "dist"),
			CacheDir:      filepath.Join(dir, ".cache"),
			PublicURL:     "/dist",
			WatchSet:      boolPtr(false),
			HMRSet:        boolPtr(false),
			ProductionSet: boolPtr(false),
		},
		Logger:    log.NewNop(),
		Farm:      f,
		Collector: metrics.NewCollector(),
	}
}

func newTestBundler(t *testing.T, dir, entry string) *Bundler {
	t.Helper()
	b, err := New(testConfig(t, dir, entry))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func mustBundle(t *testing.T, b *Bundler) *Bundle {
	t.Helper()
	root, err := b.Bundle(context.Background())
	if err != nil {
		t.Fatalf("bundle failed: %v", err)
	}
	return root
}

func readOutput(t *testing.T, b *Bundler, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(b.opts.OutDir, name))
	if err != nil {
		t.Fatalf("cannot read output %s: %v", name, err)
	}
	return string(data)
}

func assetPaths(bd *Bundle) []string {
	var out []string
	for _, n := range bd.Assets() {
		out = append(out, filepath.Base(n.Path()))
	}
	return out
}

func TestBundle_SingleScriptBundle(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.js": `var foo = require("./foo.js");` + "\n" + `module.exports = function () { return foo(); };`,
		"foo.js":   `var bar = require("./bar.json");` + "\n" + `module.exports = function () { return bar.value; };`,
		"bar.json": `{"value": 2}`,
	})

	b := newTestBundler(t, dir, "index.js")
	root := mustBundle(t, b)

	if root.Name != "index.js" || root.Type != "js" {
		t.Errorf("unexpected root bundle: %s (%s)", root.Name, root.Type)
	}
	if len(root.Assets()) != 3 {
		t.Errorf("expected 3 assets, got %v", assetPaths(root))
	}
	if len(root.ChildBundles) != 0 {
		t.Errorf("expected no child bundles, got %d", len(root.ChildBundles))
	}

	out := readOutput(t, b, "index.js")
	if !strings.Contains(out, `module.exports = {"value": 2};`) {
		t.Errorf("json must be embedded as a module:\n%s", out)
	}
}

func TestBundle_StylesheetFromScript(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.js":   `require("./index.less");` + "\n" + `module.exports = function () { return 2; };`,
		"index.less": `.index { color: red; }`,
	})

	b := newTestBundler(t, dir, "index.js")
	root := mustBundle(t, b)

	got := assetPaths(root)
	if len(got) != 2 || got[0] != "index.js" || got[1] != "index.less" {
		t.Errorf("root assets must be [index.js index.less], got %v", got)
	}

	if len(root.ChildBundles) != 1 {
		t.Fatalf("expected 1 child bundle, got %d", len(root.ChildBundles))
	}
	child := root.ChildBundles[0]
	if child.Name != "index.css" || child.Type != "css" {
		t.Errorf("expected index.css child, got %s (%s)", child.Name, child.Type)
	}
	if paths := assetPaths(child); len(paths) != 1 || paths[0] != "index.less" {
		t.Errorf("css bundle must hold the stylesheet, got %v", paths)
	}
	if root.SiblingBundles["css"] != child {
		t.Error("the css bundle must be registered as the root's sibling")
	}

	css := readOutput(t, b, "index.css")
	if !strings.Contains(css, ".index") {
		t.Errorf("emitted css must contain the selector:\n%s", css)
	}
}

func TestBundle_CSSURLReference(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.js":   `require("./index.less");`,
		"index.less": `.index { background: url(./test.woff2); }` + "\n" + `.ext { background: url(http://google.com/logo.png); }`,
		"test.woff2": "\x00\x01\x02\x03",
	})

	b := newTestBundler(t, dir, "index.js")
	root := mustBundle(t, b)

	if len(root.ChildBundles) != 2 {
		t.Fatalf("expected css and woff2 children, got %d", len(root.ChildBundles))
	}

	fontName := asset.ContentName(filepath.Join(dir, "test.woff2"))
	css := readOutput(t, b, "index.css")
	if !strings.Contains(css, `url("`+fontName+`")`) {
		t.Errorf("css must reference the emitted font file %s:\n%s", fontName, css)
	}
	if !strings.Contains(css, "http://google.com/logo.png") {
		t.Error("absolute urls must pass through unchanged")
	}

	font := readOutput(t, b, fontName)
	if font != "\x00\x01\x02\x03" {
		t.Errorf("font bytes must round-trip, got %q", font)
	}
}

func TestBundle_DynamicImportSplit(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.js":  `import("./lazy.js").then(function (m) { m.run(); });`,
		"lazy.js":   `var helper = require("./helper.js");` + "\n" + `exports.run = helper;`,
		"helper.js": `module.exports = function () {};`,
	})

	b := newTestBundler(t, dir, "index.js")
	root := mustBundle(t, b)

	if paths := assetPaths(root); len(paths) != 1 || paths[0] != "index.js" {
		t.Errorf("parent bundle must not absorb the lazy subtree, got %v", paths)
	}
	if len(root.ChildBundles) != 1 {
		t.Fatalf("expected one child bundle, got %d", len(root.ChildBundles))
	}

	child := root.ChildBundles[0]
	if child.Type != "js" {
		t.Errorf("child bundle type must be js, got %s", child.Type)
	}
	paths := assetPaths(child)
	if len(paths) != 2 || paths[0] != "lazy.js" || paths[1] != "helper.js" {
		t.Errorf("child bundle must hold the lazy subtree, got %v", paths)
	}

	out := readOutput(t, b, "index.js")
	if !strings.Contains(out, child.Name) {
		t.Errorf("parent must embed the child bundle name %s:\n%s", child.Name, out)
	}
	if !strings.Contains(out, "loadBundle") {
		t.Error("parent must carry the bundle loader")
	}
}

func TestBundle_SharedAssetHoistedToLCA(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.js":  `import("./a.js");` + "\n" + `import("./b.js");`,
		"a.js":      `require("./shared.js");`,
		"b.js":      `require("./shared.js");`,
		"shared.js": `module.exports = "shared";`,
	})

	b := newTestBundler(t, dir, "index.js")
	root := mustBundle(t, b)

	shared := b.loadedAssets[filepath.Join(dir, "shared.js")]
	if shared == nil {
		t.Fatal("shared.js missing from the graph")
	}
	if shared.ParentBundle != root {
		t.Errorf("shared asset must be hoisted to the root (LCA), got %v", shared.ParentBundle.Name)
	}
	if !root.HasAsset(shared) {
		t.Error("root bundle must contain the hoisted asset")
	}
	for _, child := range root.ChildBundles {
		if child.HasAsset(shared) {
			t.Errorf("child bundle %s must not retain the hoisted asset", child.Name)
		}
	}

	// Graph convergence: every loaded asset has a bundle assignment.
	for path, n := range b.loadedAssets {
		if n.ParentBundle == nil {
			t.Errorf("asset %s has no bundle after a successful build", path)
		}
	}
}

func TestBundle_Determinism(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.js": `import("./lazy.js");` + "\n" + `require("./foo.js");`,
		"foo.js":   `require("./bar.json");`,
		"bar.json": `{"n": 1}`,
		"lazy.js":  `module.exports = 1;`,
	})

	cfg1 := testConfig(t, dir, "index.js")
	cfg1.Options.OutDir = filepath.Join(dir, "dist1")
	cfg1.Options.CacheDir = filepath.Join(dir, ".cache1")
	b1, err := New(cfg1)
	if err != nil {
		t.Fatal(err)
	}
	mustBundle(t, b1)

	cfg2 := testConfig(t, dir, "index.js")
	cfg2.Options.OutDir = filepath.Join(dir, "dist2")
	cfg2.Options.CacheDir = filepath.Join(dir, ".cache2")
	b2, err := New(cfg2)
	if err != nil {
		t.Fatal(err)
	}
	mustBundle(t, b2)

	out1 := readOutput(t, b1, "index.js")
	out2 := readOutput(t, b2, "index.js")
	if out1 != out2 {
		t.Errorf("two runs over identical inputs must emit identical bytes:\n--- first\n%s\n--- second\n%s", out1, out2)
	}
}

func TestBundle_ResolveFailureAnnotated(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"index.js": `var x = require("./missing.js");`,
	})

	b := newTestBundler(t, dir, "index.js")
	_, err := b.Bundle(context.Background())
	if err == nil {
		t.Fatal("expected a resolve failure")
	}

	var resolveErr *types.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("expected ResolveError, got %T: %v", err, err)
	}
	if resolveErr.Importer != filepath.Join(dir, "index.js") {
		t.Errorf("error must name the importer, got %s", resolveErr.Importer)
	}
	if resolveErr.Loc == nil || resolveErr.Loc.Line != 1 {
		t.Errorf("error must carry the source location, got %v", resolveErr.Loc)
	}
	if resolveErr.Frame == "" {
		t.Error("error must carry a code frame")
	}
	if !b.Errored() {
		t.Error("the bundler must record the failed state")
	}
}
