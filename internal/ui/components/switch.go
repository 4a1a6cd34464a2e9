package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/willibrandon/studio/internal/ui/styles"
)

// Switch renders an on/off control with a label.
type Switch struct {
	Label    string
	On       bool
	Disabled bool
	Focused  bool
}

// View renders the switch.
func (s Switch) View() string {
	knob := "[ ○ off]"
	color := styles.ColorSwitchOff
	if s.On {
		knob = "[on ● ]"
		color = styles.ColorSwitchOn
	}

	knobStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	labelStyle := lipgloss.NewStyle()
	if s.Disabled {
		knobStyle = knobStyle.Foreground(styles.ColorMuted).Bold(false)
		labelStyle = labelStyle.Foreground(styles.ColorMuted)
	}
	if s.Focused && !s.Disabled {
		labelStyle = labelStyle.Foreground(styles.ColorAccent).Underline(true)
	}

	return knobStyle.Render(knob) + " " + labelStyle.Render(s.Label)
}
