// Package styles provides centralized Lipgloss styling for the studio console.
package styles

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	// UI element colors
	ColorBorder  = lipgloss.Color("240") // Gray - all borders
	ColorAccent  = lipgloss.Color("6")   // Cyan - titles, highlights
	ColorMuted   = lipgloss.Color("8")   // Dark gray - secondary text
	ColorSuccess = lipgloss.Color("10")  // Green - success messages
	ColorError   = lipgloss.Color("9")   // Red - error messages
	ColorWarning = lipgloss.Color("11")  // Yellow - warnings, pending edits

	// Selection colors
	ColorSelectedFg = lipgloss.Color("229") // Light yellow text
	ColorSelectedBg = lipgloss.Color("57")  // Purple background

	// Switch colors
	ColorSwitchOn  = lipgloss.Color("10")
	ColorSwitchOff = lipgloss.Color("240")

	// Toast colors
	ColorToastErrorBg = lipgloss.Color("52") // Dark red
	ColorToastInfoBg  = lipgloss.Color("23") // Dark teal
)
