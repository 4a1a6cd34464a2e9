package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/willibrandon/studio/internal/ui/styles"
)

// HelpText represents the help component
type HelpText struct {
	width  int
	height int
}

// NewHelp creates a new help component
func NewHelp() *HelpText {
	return &HelpText{}
}

// SetSize sets the size of the help component
func (h *HelpText) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// View renders the help screen
func (h *HelpText) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	b.WriteString(styles.AccentStyle.Render("Navigation"))
	b.WriteString("\n")
	b.WriteString(h.formatShortcut("q, Ctrl+C", "Quit application"))
	b.WriteString(h.formatShortcut("?", "Toggle help screen"))
	b.WriteString(h.formatShortcut("Esc", "Close dialog or editor"))
	b.WriteString(h.formatShortcut("Tab / Shift+Tab", "Next / previous view"))
	b.WriteString(h.formatShortcut("1 / 2", "Tables / Storage"))
	b.WriteString(h.formatShortcut("p", "Next project"))
	b.WriteString(h.formatShortcut("r", "Refresh"))
	b.WriteString(h.formatShortcut("L", "Warnings and errors"))
	b.WriteString("\n")

	b.WriteString(styles.AccentStyle.Render("Tables"))
	b.WriteString("\n")
	b.WriteString(h.formatShortcut("↑/k ↓/j", "Select relation"))
	b.WriteString(h.formatShortcut("Enter", "Edit relation"))
	b.WriteString(h.formatShortcut("a", "New table"))
	b.WriteString(h.formatShortcut("d", "Duplicate relation"))
	b.WriteString(h.formatShortcut("Space", "Toggle Data API access"))
	b.WriteString(h.formatShortcut("Ctrl+S", "Save"))
	b.WriteString("\n")

	b.WriteString(styles.AccentStyle.Render("Storage"))
	b.WriteString("\n")
	b.WriteString(h.formatShortcut("e", "Edit global size limit"))
	b.WriteString(h.formatShortcut("v", "Validate size limit"))
	b.WriteString(h.formatShortcut("y / n", "Confirm / cancel"))

	dialog := styles.HelpStyle.Render(b.String())
	if h.width > 0 {
		dialog = lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, dialog)
	}
	return dialog
}

// formatShortcut formats a keyboard shortcut with its description
func (h *HelpText) formatShortcut(keys, description string) string {
	keyStyle := styles.HelpKeyStyle.
		Bold(true).
		Width(20).
		Align(lipgloss.Left)

	return keyStyle.Render(keys) + styles.HelpDescStyle.Render(description) + "\n"
}

// ShortHelp returns a brief help text for the bottom of the screen
func (h *HelpText) ShortHelp() string {
	return styles.FooterHintStyle.Render("Press '?' for help • 'q' to quit")
}
