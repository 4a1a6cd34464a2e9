package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keyboard bindings for the application
type KeyMap struct {
	// Navigation
	Quit        key.Binding
	Help        key.Binding
	CloseDialog key.Binding
	NextView    key.Binding
	PrevView    key.Binding
	NextProject key.Binding
	Logs        key.Binding

	// View jumping
	JumpToTables  key.Binding
	JumpToStorage key.Binding

	// List navigation
	Up   key.Binding
	Down key.Binding
	Home key.Binding
	End  key.Binding

	// Actions
	Refresh   key.Binding
	Edit      key.Binding
	NewTable  key.Binding
	Duplicate key.Binding
	Toggle    key.Binding
	Save      key.Binding
	EditLimit key.Binding
	Validate  key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
}

// DefaultKeyMap returns the default keyboard bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		CloseDialog: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		NextView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next view"),
		),
		PrevView: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous view"),
		),
		NextProject: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "next project"),
		),

		Logs: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "warnings and errors"),
		),

		JumpToTables: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "tables"),
		),
		JumpToStorage: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "storage"),
		),

		// vim-like
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("home/g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end/G", "bottom"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Edit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "edit"),
		),
		NewTable: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "new table"),
		),
		Duplicate: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "duplicate"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		EditLimit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit limit"),
		),
		Validate: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "validate size limit"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "cancel"),
		),
	}
}

// ShortHelp returns a quick help view for the key bindings
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help, k.Refresh, k.NextProject}
}

// FullHelp returns the full help view for all key bindings
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Help, k.CloseDialog, k.Logs},
		{k.NextView, k.PrevView, k.JumpToTables, k.JumpToStorage, k.NextProject},
		{k.Up, k.Down, k.Home, k.End},
		{k.Refresh, k.Edit, k.NewTable, k.Duplicate, k.Toggle, k.Save},
		{k.EditLimit, k.Validate, k.Confirm, k.Cancel},
	}
}
