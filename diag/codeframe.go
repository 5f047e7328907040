// Package diag renders user-facing diagnostics: file locations and code
// frames with the offending source highlighted.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/bale/types"
)

var (
	pathStyle   = lipgloss.NewStyle().Bold(true)
	gutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	caretStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// contextLines is the number of lines shown above and below the target.
const contextLines = 2

// CodeFrame renders a snippet of source around loc with a caret under the
// offending column. Returns "" when loc is out of range.
func CodeFrame(source string, loc *types.SourceLocation) string {
	if loc == nil || loc.Line < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if loc.Line > len(lines) {
		return ""
	}

	start := loc.Line - 1 - contextLines
	if start < 0 {
		start = 0
	}
	end := loc.Line + contextLines
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	width := len(fmt.Sprint(end))
	for i := start; i < end; i++ {
		lineNo := i + 1
		marker := "  "
		if lineNo == loc.Line {
			marker = caretStyle.Render("> ")
		}
		b.WriteString(marker)
		b.WriteString(gutterStyle.Render(fmt.Sprintf("%*d | ", width, lineNo)))
		b.WriteString(lines[i])
		b.WriteString("\n")
		if lineNo == loc.Line && loc.Column >= 1 && loc.Column <= len(lines[i])+1 {
			b.WriteString(strings.Repeat(" ", 2+width+3+loc.Column-1))
			b.WriteString(caretStyle.Render("^"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatError pretty-prints a build error with path, location, and a code
// frame when one is attached.
func FormatError(err error) string {
	var b strings.Builder

	var resolveErr *types.ResolveError
	var parseErr *types.ParseError
	switch {
	case asErr(err, &resolveErr):
		b.WriteString(errStyle.Render("resolve error: "))
		b.WriteString(fmt.Sprintf("cannot find %q\n", resolveErr.Specifier))
		b.WriteString("  imported from ")
		b.WriteString(pathStyle.Render(resolveErr.Importer))
		if resolveErr.Loc != nil {
			b.WriteString(":" + resolveErr.Loc.String())
		}
		b.WriteString("\n")
		if resolveErr.Frame != "" {
			b.WriteString(resolveErr.Frame)
		}
	case asErr(err, &parseErr):
		b.WriteString(errStyle.Render("parse error: "))
		b.WriteString(pathStyle.Render(parseErr.Path))
		if parseErr.Loc != nil {
			b.WriteString(":" + parseErr.Loc.String())
		}
		b.WriteString("\n  " + parseErr.Msg + "\n")
	default:
		b.WriteString(errStyle.Render("error: "))
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// asErr adapts errors.As to a boolean-friendly call site.
func asErr[T error](err error, target *T) bool {
	return errors.As(err, target)
}
