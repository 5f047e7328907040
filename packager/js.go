package packager

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// prelude is the module runtime emitted at the top of every script bundle.
// It provides synchronous require over the module table and a loader for
// dynamic child bundles: a dynamic mapping entry is [childId, bundleName]
// and require() for it returns a promise that injects the child bundle
// before resolving the child module. Every bundle merges its module table
// and module cache into one page-global registry, so a module defined by a
// child bundle is reachable from its parent once the child has loaded.
const prelude = `(function (modules, entry, publicURL) {
  var root = typeof globalThis !== "undefined" ? globalThis : window;
  var registry = root.__baleModules || (root.__baleModules = { modules: {}, cache: {} });
  for (var key in modules) registry.modules[key] = modules[key];
  modules = registry.modules;
  var cache = registry.cache;
  var loaded = {};
  function loadBundle(name) {
    if (loaded[name]) return loaded[name];
    loaded[name] = new Promise(function (resolve, reject) {
      var script = document.createElement("script");
      script.src = publicURL.replace(/\/$/, "") + "/" + name;
      script.onload = resolve;
      script.onerror = function () { reject(new Error("cannot load " + name)); };
      document.head.appendChild(script);
    });
    return loaded[name];
  }
  function localRequire(id) {
    if (cache[id]) return cache[id].exports;
    var module = (cache[id] = { exports: {} });
    modules[id][0].call(module.exports, requireFrom(id), module, module.exports);
    return module.exports;
  }
  function requireFrom(parentId) {
    return function (name) {
      var mapping = modules[parentId][1][name];
      if (mapping === undefined) throw new Error("cannot find module '" + name + "'");
      if (typeof mapping === "number") return localRequire(mapping);
      return loadBundle(mapping[1]).then(function () { return localRequire(mapping[0]); });
    };
  }
  localRequire(entry);
})`

// JSPackager wraps member modules in a module-table prelude.
type JSPackager struct{}

// Package implements Packager.
func (JSPackager) Package(w io.Writer, b *Bundle) error {
	var table strings.Builder
	table.WriteString("{")
	for i, m := range b.Modules {
		if i > 0 {
			table.WriteString(",")
		}
		code := m.Code
		if b.Minify {
			code = minifyJS(code)
		}
		fmt.Fprintf(&table, "\n%d: [function (require, module, exports) {\n%s\n}, %s]",
			m.ID, code, mappingLiteral(m))
	}
	table.WriteString("\n}")

	_, err := fmt.Fprintf(w, "%s(%s, %d, %s);\n",
		prelude, table.String(), b.EntryID, strconv.Quote(b.PublicURL))
	return err
}

// mappingLiteral emits the specifier → module mapping for one module, in
// discovery order. Static edges map to the child id; dynamic edges map to
// [childId, bundleName].
func mappingLiteral(m Module) string {
	var b strings.Builder
	b.WriteString("{")
	for i, spec := range m.Order {
		ref := m.Deps[spec]
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.Quote(spec))
		b.WriteString(":")
		if ref.BundleName != "" {
			fmt.Fprintf(&b, "[%d,%s]", ref.ID, strconv.Quote(ref.BundleName))
		} else {
			b.WriteString(strconv.Itoa(ref.ID))
		}
	}
	b.WriteString("}")
	return b.String()
}

// minifyJS is a whitespace-grade compaction: blank lines and indentation
// go, code stays untouched.
func minifyJS(code string) string {
	lines := strings.Split(code, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
