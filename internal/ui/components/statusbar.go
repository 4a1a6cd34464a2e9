package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// StatusBar represents the status bar component
type StatusBar struct {
	width int

	project       string
	connected     bool
	serverVersion string
	lastError     string
	timestamp     time.Time
	dateFormat    string
	busy          int
}

// NewStatusBar creates a new status bar component
func NewStatusBar() *StatusBar {
	return &StatusBar{dateFormat: "2006-01-02 15:04:05"}
}

// SetSize sets the width of the status bar
func (s *StatusBar) SetSize(width int) {
	s.width = width
}

// SetProject sets the project ref shown first.
func (s *StatusBar) SetProject(ref string) {
	s.project = ref
}

// SetConnected records a successful connection.
func (s *StatusBar) SetConnected(version string) {
	s.connected = true
	s.serverVersion = version
	s.lastError = ""
}

// SetDisconnected records a failed connection.
func (s *StatusBar) SetDisconnected(err error) {
	s.connected = false
	if err != nil {
		s.lastError = err.Error()
	}
}

// SetTimestamp sets the current timestamp
func (s *StatusBar) SetTimestamp(timestamp time.Time) {
	s.timestamp = timestamp
}

// SetDateFormat sets the date format string
func (s *StatusBar) SetDateFormat(format string) {
	if format != "" {
		s.dateFormat = format
	}
}

// SetBusy sets the number of requests in flight.
func (s *StatusBar) SetBusy(n int) {
	s.busy = n
}

// View renders the status bar
func (s *StatusBar) View() string {
	var statusIndicator string
	switch {
	case s.connected:
		statusIndicator = styles.SuccessStyle.Render("● Connected")
	case s.lastError != "":
		statusIndicator = styles.ErrorStyle.Render("● Unreachable")
	default:
		statusIndicator = styles.MutedStyle.Render("● Connecting")
	}

	project := s.project
	if project == "" {
		project = "N/A"
	}

	sections := []string{statusIndicator, styles.StatusTitleStyle.Render(project)}
	if s.serverVersion != "" {
		sections = append(sections, "PostgreSQL "+s.serverVersion)
	}
	if !s.timestamp.IsZero() {
		sections = append(sections, styles.StatusTimeStyle.Render(s.timestamp.Format(s.dateFormat)))
	}
	if s.busy > 0 {
		sections = append(sections, styles.WarningStyle.Render(fmt.Sprintf("%d running", s.busy)))
	}

	// Warning/error counts only in debug mode
	if logger.IsDebugEnabled() {
		warnCount, errCount := logger.GetCounts()
		if warnCount > 0 {
			sections = append(sections, styles.WarningStyle.Render(fmt.Sprintf("⚠ %d", warnCount)))
		}
		if errCount > 0 {
			sections = append(sections, styles.ErrorStyle.Render(fmt.Sprintf("✕ %d", errCount)))
		}
	}

	statusLine := strings.Join(sections, " | ")
	if s.width > 0 {
		return lipgloss.NewStyle().Width(s.width).Render(statusLine)
	}
	return styles.StatusBarStyle.Render(statusLine)
}
