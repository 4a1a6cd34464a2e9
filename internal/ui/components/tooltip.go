package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mitchellh/go-wordwrap"

	"github.com/willibrandon/studio/internal/ui/styles"
)

// Tooltip is a short help text shown next to a focused control.
type Tooltip struct {
	Text    string
	Width   int
	Visible bool
}

// NewTooltip creates a hidden tooltip wrapping at width columns.
func NewTooltip(text string, width int) *Tooltip {
	return &Tooltip{Text: text, Width: width}
}

// Lines returns the wrapped text.
func (t *Tooltip) Lines() []string {
	width := t.Width
	if width < 10 {
		width = 40
	}
	return strings.Split(wordwrap.WrapString(t.Text, uint(width)), "\n")
}

// View renders the tooltip, or nothing when hidden.
func (t *Tooltip) View() string {
	if !t.Visible || t.Text == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Border(styles.BorderRounded).
		BorderForeground(styles.ColorMuted).
		Foreground(styles.ColorMuted).
		Padding(0, 1).
		Render(strings.Join(t.Lines(), "\n"))
}
