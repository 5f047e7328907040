package asset

import (
	"errors"
	"testing"

	"github.com/justapithecus/bale/types"
)

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	opts := testOptions()

	cases := []struct {
		path string
		want string
	}{
		{"/src/index.js", "*asset.JSAsset"},
		{"/src/app.JSX", "*asset.JSAsset"},
		{"/src/data.json", "*asset.JSONAsset"},
		{"/src/style.less", "*asset.CSSAsset"},
		{"/src/index.html", "*asset.HTMLAsset"},
		{"/src/font.woff2", "*asset.RawAsset"},
		{"/src/Makefile", "*asset.RawAsset"},
	}
	for _, tc := range cases {
		a := r.Get(tc.path, nil, opts)
		if got := typeName(a); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.path, tc.want, got)
		}
	}
}

func TestRegistry_RegisterExtension(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterExtension("scss", "css"); err != nil {
		t.Fatal(err)
	}
	if got := typeName(r.Get("/src/a.scss", nil, testOptions())); got != "*asset.CSSAsset" {
		t.Errorf("registered extension must dispatch, got %s", got)
	}

	if err := r.RegisterExtension(".vue", "nonexistent"); err == nil {
		t.Error("unknown variant names must be rejected")
	}
}

func TestRegistry_LockedRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	r.Lock()
	err := r.RegisterExtension(".scss", "css")
	if !errors.Is(err, types.ErrConfigLocked) {
		t.Errorf("expected ErrConfigLocked, got %v", err)
	}
}

func TestRegistry_FromExtensions(t *testing.T) {
	r := NewRegistry()
	reconstituted := FromExtensions(r.Extensions())

	if got := typeName(reconstituted.Get("/src/a.less", nil, testOptions())); got != "*asset.CSSAsset" {
		t.Errorf("reconstituted registry must match the original, got %s", got)
	}
	if err := reconstituted.RegisterExtension(".x", "raw"); !errors.Is(err, types.ErrConfigLocked) {
		t.Error("reconstituted registries are locked")
	}
}

func typeName(a Asset) string {
	switch a.(type) {
	case *JSAsset:
		return "*asset.JSAsset"
	case *JSONAsset:
		return "*asset.JSONAsset"
	case *CSSAsset:
		return "*asset.CSSAsset"
	case *HTMLAsset:
		return "*asset.HTMLAsset"
	case *RawAsset:
		return "*asset.RawAsset"
	}
	return "unknown"
}

func TestDepMap_PreservesInsertionOrder(t *testing.T) {
	d := NewDepMap()
	d.Add(types.DependencyRecord{Name: "./c.js"})
	d.Add(types.DependencyRecord{Name: "./a.js"})
	d.Add(types.DependencyRecord{Name: "./b.js", Dynamic: true})
	// Replacement keeps the original position.
	d.Add(types.DependencyRecord{Name: "./a.js", Dynamic: true})

	keys := d.Keys()
	want := []string{"./c.js", "./a.js", "./b.js"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("key %d: expected %s, got %s", i, k, keys[i])
		}
	}

	rec, _ := d.Get("./a.js")
	if !rec.Dynamic {
		t.Error("replacement must update the record")
	}
}
