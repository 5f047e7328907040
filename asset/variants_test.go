package asset

import (
	"strings"
	"testing"
)

func TestJSAsset_CollectDependencies(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.js", strings.Join([]string{
		`var foo = require("./foo.js");`,
		`import bar from "./bar.js";`,
		`import "./side.js";`,
		`export { thing } from "./reexport.js";`,
		`import("./lazy.js").then(function (m) {});`,
	}, "\n"))
	writeFile(t, dir, "foo.js", "")
	writeFile(t, dir, "bar.js", "")
	writeFile(t, dir, "side.js", "")
	writeFile(t, dir, "reexport.js", "")
	writeFile(t, dir, "lazy.js", "")

	a := NewJS(path, nil, testOptions())
	result, err := Process(a)
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		name    string
		dynamic bool
		line    int
	}{
		{"./foo.js", false, 1},
		{"./bar.js", false, 2},
		{"./side.js", false, 3},
		{"./reexport.js", false, 4},
		{"./lazy.js", true, 5},
	}
	if len(result.Dependencies) != len(want) {
		t.Fatalf("expected %d dependencies, got %d: %v", len(want), len(result.Dependencies), result.Dependencies)
	}
	for i, w := range want {
		d := result.Dependencies[i]
		if d.Name != w.name {
			t.Errorf("dep %d: expected %q, got %q", i, w.name, d.Name)
		}
		if d.Dynamic != w.dynamic {
			t.Errorf("dep %q: dynamic = %v, want %v", d.Name, d.Dynamic, w.dynamic)
		}
		if d.Loc == nil || d.Loc.Line != w.line {
			t.Errorf("dep %q: expected line %d, got %v", d.Name, w.line, d.Loc)
		}
	}
}

func TestJSAsset_NoReferenceSyntaxSkipsCollect(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.js", "var a = 1 + 2;")

	a := NewJS(path, nil, testOptions())
	result, err := Process(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %v", result.Dependencies)
	}
}

func TestJSONAsset_Generate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"answer": 42}`)

	a := NewJSON(path, nil, testOptions())
	result, err := Process(a)
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Generated["js"]; got != `module.exports = {"answer": 42};` {
		t.Errorf("unexpected js output: %q", got)
	}
	if a.Base().Type() != "js" {
		t.Errorf("json assets emit as js, got type %q", a.Base().Type())
	}
}

func TestCSSAsset_CollectAndRewrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.less", strings.Join([]string{
		`@import "vars.less";`,
		`.index { background: url(./test.woff2); }`,
		`.logo { background: url("http://google.com/logo.png"); }`,
	}, "\n"))
	writeFile(t, dir, "vars.less", "")
	writeFile(t, dir, "test.woff2", "\x00\x01")

	a := NewCSS(path, nil, testOptions())
	result, err := Process(a)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %v", result.Dependencies)
	}
	if result.Dependencies[0].Name != "./vars.less" || result.Dependencies[0].Dynamic {
		t.Errorf("@import must be a static dependency, got %+v", result.Dependencies[0])
	}
	if result.Dependencies[1].Name != "./test.woff2" || !result.Dependencies[1].Dynamic {
		t.Errorf("url() must be a dynamic dependency, got %+v", result.Dependencies[1])
	}

	css := result.Generated["css"]
	if strings.Contains(css, "@import") {
		t.Error("@import statements must be stripped from the emitted sheet")
	}
	want := `url("` + ContentName(path[:len(path)-len("index.less")]+"test.woff2") + `")`
	if !strings.Contains(css, want) {
		t.Errorf("expected rewritten reference %s in:\n%s", want, css)
	}
	if !strings.Contains(css, "http://google.com/logo.png") {
		t.Error("absolute urls must pass through unchanged")
	}

	if stub := result.Generated["js"]; stub == "" {
		t.Error("stylesheets must emit a script stub")
	}
}

func TestHTMLAsset_RewritesReferences(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.html", strings.Join([]string{
		`<link rel="stylesheet" href="style.css">`,
		`<script src="./app.js"></script>`,
		`<a href="https://example.com">out</a>`,
	}, "\n"))
	stylePath := writeFile(t, dir, "style.css", ".a{}")
	appPath := writeFile(t, dir, "app.js", "")

	a := NewHTML(path, nil, testOptions())
	result, err := Process(a)
	if err != nil {
		t.Fatal(err)
	}

	html := result.Generated["html"]
	if !strings.Contains(html, `href="`+ContentName(stylePath)+`"`) {
		t.Errorf("stylesheet reference not rewritten:\n%s", html)
	}
	if !strings.Contains(html, `src="`+ContentName(appPath)+`"`) {
		t.Errorf("script reference not rewritten:\n%s", html)
	}
	if !strings.Contains(html, "https://example.com") {
		t.Error("external links must pass through unchanged")
	}
	if len(result.Dependencies) != 2 {
		t.Errorf("expected 2 dependencies, got %v", result.Dependencies)
	}
}

func TestRawAsset_EmitsFilenameStub(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "font.woff2", "\x00\x01\x02")

	a := NewRaw(path, nil, testOptions())
	result, err := Process(a)
	if err != nil {
		t.Fatal(err)
	}

	if got := result.Generated["woff2"]; got != "\x00\x01\x02" {
		t.Errorf("raw output must be the file bytes, got %q", got)
	}
	stub := result.Generated["js"]
	if !strings.HasPrefix(stub, "module.exports = ") {
		t.Errorf("stub must export the emitted filename, got %q", stub)
	}
	if !strings.Contains(stub, "/dist/"+ContentName(path)) {
		t.Errorf("stub must reference the public url, got %q", stub)
	}
}
