package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/willibrandon/studio/internal/ui/highlight"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// ConfirmDialog asks before running an expensive or destructive statement
// and shows the statement itself.
type ConfirmDialog struct {
	width    int
	height   int
	title    string
	message  string
	sql      string
	sqlStyle string
	visible  bool
}

// NewConfirmDialog creates a new confirmation dialog.
func NewConfirmDialog() *ConfirmDialog {
	return &ConfirmDialog{sqlStyle: highlight.DefaultStyle}
}

// Show displays the dialog.
func (d *ConfirmDialog) Show(title, message, sql string) {
	d.title = title
	d.message = message
	d.sql = sql
	d.visible = true
}

// Hide hides the dialog.
func (d *ConfirmDialog) Hide() {
	d.visible = false
}

// IsVisible returns whether the dialog is visible.
func (d *ConfirmDialog) IsVisible() bool {
	return d.visible
}

// SetSQLStyle selects the chroma style of the statement preview.
func (d *ConfirmDialog) SetSQLStyle(style string) {
	d.sqlStyle = style
}

// SetSize sets the dialog dimensions.
func (d *ConfirmDialog) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// View renders the confirmation dialog.
func (d *ConfirmDialog) View() string {
	if !d.visible {
		return ""
	}

	width := 70
	if d.width > 0 && d.width-4 < width {
		width = max(d.width-4, 30)
	}

	parts := []string{
		styles.DialogTitleStyle.MarginBottom(1).Render(d.title),
		lipgloss.NewStyle().Width(width - 6).Render(d.message),
	}
	if d.sql != "" {
		parts = append(parts, "", highlight.Indent(highlight.SQLWithStyle(d.sql, d.sqlStyle), "  "))
	}
	parts = append(parts, lipgloss.NewStyle().MarginTop(1).Bold(true).Render("[y] Confirm  [n] Cancel"))

	return styles.DialogStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
