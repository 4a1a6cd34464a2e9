package components

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// LogPanel is an overlay listing the warnings and errors captured by the
// logger, such as failed grants or unreachable projects.
type LogPanel struct {
	viewport viewport.Model
	width    int
	height   int
	visible  bool
}

// NewLogPanel creates a hidden panel.
func NewLogPanel() *LogPanel {
	return &LogPanel{viewport: viewport.New(0, 0)}
}

func (p *LogPanel) panelWidth() int {
	return max(p.width*80/100, 60)
}

// SetSize sets the screen dimensions the panel is centered in.
func (p *LogPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.viewport.Width = p.panelWidth() - 4
	p.viewport.Height = max(height*60/100, 10) - 6
}

// Toggle shows or hides the panel.
func (p *LogPanel) Toggle() {
	p.visible = !p.visible
	if p.visible {
		p.refresh()
	}
}

// IsVisible reports whether the panel is shown.
func (p *LogPanel) IsVisible() bool {
	return p.visible
}

func (p *LogPanel) refresh() {
	entries := logger.GetEntries()
	if len(entries) == 0 {
		p.viewport.SetContent(styles.MutedStyle.Render("No warnings or errors"))
		return
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		style := styles.WarningStyle
		if e.Level >= slog.LevelError {
			style = styles.ErrorStyle
		}
		line := style.Render(e.Format())
		if p.viewport.Width > 0 {
			line = ansi.Truncate(line, p.viewport.Width, "…")
		}
		lines = append(lines, line)
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
	p.viewport.GotoBottom()
}

// Update handles keys while the panel is visible.
func (p *LogPanel) Update(msg tea.Msg) (*LogPanel, tea.Cmd) {
	if !p.visible {
		return p, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc", "L", "q":
			p.visible = false
			return p, nil
		case "c":
			logger.ClearCounts()
			p.refresh()
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// View renders the panel centered on screen.
func (p *LogPanel) View() string {
	if !p.visible {
		return ""
	}

	warnCount, errCount := logger.GetCounts()
	header := styles.TitleStyle.Render("Warnings and errors") +
		styles.MutedStyle.Render(fmt.Sprintf(" (%d warnings, %d errors)", warnCount, errCount))
	rule := styles.MutedStyle.Render(strings.Repeat("─", p.panelWidth()-4))

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		rule,
		p.viewport.View(),
		rule,
		styles.FooterHintStyle.Render("[L/Esc] close  [c] clear counts  [j/k] scroll"),
	)

	panel := styles.DialogStyle.Width(p.panelWidth()).Render(content)
	return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, panel)
}
