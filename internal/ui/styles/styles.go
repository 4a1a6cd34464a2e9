package styles

import "github.com/charmbracelet/lipgloss"

// Common border styles
var (
	BorderNormal  = lipgloss.NormalBorder()
	BorderRounded = lipgloss.RoundedBorder()
)

// Panel styles
var (
	// PanelStyle frames a view section
	PanelStyle = lipgloss.NewStyle().
			Border(BorderRounded).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	// PanelLabelStyle is for field labels
	PanelLabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				BorderStyle(BorderNormal).
				BorderForeground(ColorBorder).
				BorderBottom(true).
				Bold(true)

	TableSelectedStyle = lipgloss.NewStyle().
				Foreground(ColorSelectedFg).
				Background(ColorSelectedBg)
)

// Status bar styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Border(BorderNormal).
			BorderForeground(ColorBorder)

	// StatusTitleStyle is for the project ref
	StatusTitleStyle = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	StatusTimeStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// Footer styles
var (
	FooterHintStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// Dialog styles
var (
	DialogStyle = lipgloss.NewStyle().
			Border(BorderRounded).
			BorderForeground(ColorAccent).
			Padding(1, 2)

	DialogTitleStyle = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	DialogButtonStyle = lipgloss.NewStyle().
				Padding(0, 2).
				Margin(0, 1)

	DialogButtonActiveStyle = DialogButtonStyle.
				Foreground(ColorSelectedFg).
				Background(ColorSelectedBg)
)

// Message styles
var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
)

// Help overlay styles
var (
	HelpStyle = lipgloss.NewStyle().
			Border(BorderRounded).
			BorderForeground(ColorAccent).
			Padding(1, 2)

	HelpKeyStyle  = lipgloss.NewStyle().Foreground(ColorAccent)
	HelpDescStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Common UI styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
)
