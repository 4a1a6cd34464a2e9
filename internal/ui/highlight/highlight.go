// Package highlight provides SQL syntax highlighting for previews of
// generated statements.
package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"

	_ "github.com/willibrandon/studio/internal/ui/styles" // registers the studio chroma styles
)

// DefaultStyle is the chroma style used when none is given.
const DefaultStyle = "studio"

// SQL applies syntax highlighting to SQL using the default style.
// Returns original string if highlighting fails.
func SQL(sql string) string {
	return SQLWithStyle(sql, DefaultStyle)
}

// SQLWithStyle applies syntax highlighting with a named chroma style.
func SQLWithStyle(sql, style string) string {
	if sql == "" {
		return ""
	}
	if style == "" {
		style = DefaultStyle
	}

	var buf bytes.Buffer
	if err := quick.Highlight(&buf, sql, "postgresql", "terminal256", style); err != nil {
		return sql
	}

	return buf.String()
}

// Indent prefixes every line of sql with prefix. Generated DO blocks are
// shown indented inside dialogs.
func Indent(sql, prefix string) string {
	lines := strings.Split(strings.TrimRight(sql, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
