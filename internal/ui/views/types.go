package views

import tea "github.com/charmbracelet/bubbletea"

// ViewType represents the views of the console
type ViewType int

const (
	ViewTables ViewType = iota
	ViewStorage
)

// String returns the string representation of the view type
func (v ViewType) String() string {
	switch v {
	case ViewTables:
		return "Tables"
	case ViewStorage:
		return "Storage"
	default:
		return "Unknown"
	}
}

// ViewModel defines the interface that all views must implement
type ViewModel interface {
	// Init initializes the view and returns any initial commands
	Init() tea.Cmd

	// Update handles messages and updates the view state
	Update(tea.Msg) (ViewModel, tea.Cmd)

	// View renders the view to a string
	View() string

	// SetSize sets the dimensions of the view
	SetSize(width, height int)

	// SetProject points the view at another project.
	SetProject(ref, connectionString string) tea.Cmd

	// Capturing reports whether the view is consuming keys itself, e.g. in
	// a text input or dialog.
	Capturing() bool
}
