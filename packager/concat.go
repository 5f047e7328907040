package packager

import (
	"io"
	"regexp"
	"strings"
)

// ConcatPackager joins member outputs with a separator. Used for
// stylesheets and markup, where member order is reference order.
type ConcatPackager struct {
	Separator string
}

var cssWhitespaceRe = regexp.MustCompile(`\s+`)

// Package implements Packager.
func (p ConcatPackager) Package(w io.Writer, b *Bundle) error {
	parts := make([]string, 0, len(b.Modules))
	for _, m := range b.Modules {
		code := m.Code
		if b.Minify && b.Type == "css" {
			code = minifyCSS(code)
		}
		parts = append(parts, code)
	}
	_, err := io.WriteString(w, strings.Join(parts, p.Separator))
	return err
}

// minifyCSS collapses runs of whitespace. Selectors and values survive; a
// proper compressor is a packager replacement away.
func minifyCSS(code string) string {
	code = cssWhitespaceRe.ReplaceAllString(code, " ")
	code = strings.ReplaceAll(code, " {", "{")
	code = strings.ReplaceAll(code, ": ", ":")
	code = strings.ReplaceAll(code, "; ", ";")
	return strings.TrimSpace(code)
}

// RawPackager byte-copies the single member's output. Fallback for binary
// bundle types (fonts, images).
type RawPackager struct{}

// Package implements Packager.
func (RawPackager) Package(w io.Writer, b *Bundle) error {
	for _, m := range b.Modules {
		if _, err := io.WriteString(w, m.Code); err != nil {
			return err
		}
	}
	return nil
}
