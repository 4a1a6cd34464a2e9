package tables

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/ui"
	"github.com/willibrandon/studio/internal/ui/components"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// TableField is the editor's draft of a relation. IsAPIAccessEnabled is nil
// until the user or the initial load sets it.
type TableField struct {
	ID                 uint32
	Schema             string
	Name               string
	IsAPIAccessEnabled *bool
}

type toggleKind int

const (
	toggleUnknown toggleKind = iota
	togglePending
	toggleServerDerived
)

// ToggleState is the value behind the switch: a pending edit, the value
// derived from the server, or unknown.
type ToggleState struct {
	kind  toggleKind
	value bool
}

// Unknown is the state before anything is known.
func Unknown() ToggleState { return ToggleState{} }

// Pending is an edit not yet saved.
func Pending(v bool) ToggleState { return ToggleState{kind: togglePending, value: v} }

// ServerDerived is the value read from the database.
func ServerDerived(v bool) ToggleState { return ToggleState{kind: toggleServerDerived, value: v} }

// IsUnknown reports whether nothing is known.
func (s ToggleState) IsUnknown() bool { return s.kind == toggleUnknown }

// IsPending reports whether the state is a pending edit.
func (s ToggleState) IsPending() bool { return s.kind == togglePending }

// IsServerDerived reports whether the state came from the server.
func (s ToggleState) IsServerDerived() bool { return s.kind == toggleServerDerived }

// Display is the value shown. Unknown shows enabled.
func (s ToggleState) Display() bool {
	if s.kind == toggleUnknown {
		return true
	}
	return s.value
}

func (s ToggleState) String() string {
	switch s.kind {
	case togglePending:
		if s.value {
			return "Pending(true)"
		}
		return "Pending(false)"
	case toggleServerDerived:
		if s.value {
			return "ServerDerived(true)"
		}
		return "ServerDerived(false)"
	default:
		return "Unknown"
	}
}

// APIAccessToggle is the Data API switch of the table editor. It never
// writes: user changes go to OnChange and the editor's save flow applies
// them.
type APIAccessToggle struct {
	project          privileges.ProjectVars
	field            TableField
	isNewRecord      bool
	isDuplicating    bool
	server           ToggleState
	roles            privileges.RoleSet
	loading          bool
	loadErr          error
	initialLoadFired bool
	focused          bool
	spinner          spinner.Model
	keys             ui.KeyMap

	// OnChange receives the value the user switched to.
	OnChange func(enabled bool)
	// OnInitialLoad receives the first server value when no edit exists.
	OnInitialLoad func(enabled bool)
}

// NewAPIAccessToggle creates the toggle for field. New and duplicated
// records have no relation to read yet.
func NewAPIAccessToggle(project privileges.ProjectVars, field TableField, isNewRecord, isDuplicating bool) *APIAccessToggle {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.AccentStyle
	return &APIAccessToggle{
		project:       project,
		field:         field,
		isNewRecord:   isNewRecord,
		isDuplicating: isDuplicating,
		spinner:       s,
		keys:          ui.DefaultKeyMap(),
	}
}

// ReadSkipped reports whether the API-access read is never issued.
func (t *APIAccessToggle) ReadSkipped() bool {
	return t.isNewRecord || t.isDuplicating
}

// Variables identify the relation to read.
func (t *APIAccessToggle) Variables() privileges.TableAPIAccessVariables {
	return privileges.TableAPIAccessVariables{
		ProjectRef:       t.project.ProjectRef,
		ConnectionString: t.project.ConnectionString,
		RelationID:       t.field.ID,
		Schema:           t.field.Schema,
		TableName:        t.field.Name,
	}
}

// Load starts the read unless it is skipped.
func (t *APIAccessToggle) Load(refetch bool) tea.Cmd {
	if t.ReadSkipped() {
		return nil
	}
	t.loading = true
	vars := t.Variables()
	return tea.Batch(t.spinner.Tick, func() tea.Msg {
		return ui.LoadTableAPIAccessCmd{Vars: vars, Enabled: true, Refetch: refetch}
	})
}

// SetField replaces the draft, e.g. after OnChange updated it.
func (t *APIAccessToggle) SetField(field TableField) {
	t.field = field
}

// SetFocused sets keyboard focus.
func (t *APIAccessToggle) SetFocused(focused bool) {
	t.focused = focused
}

// Loaded records the result of a read. The first known server value is
// reported through OnInitialLoad when the draft has no value yet; later
// loads never report again.
func (t *APIAccessToggle) Loaded(result privileges.TableAPIAccessResult, err error) {
	t.loading = false
	t.loadErr = err
	if err != nil || result.Skipped || result.Data == nil {
		return
	}

	t.server = ServerDerived(result.Data.HasAPIAccess)
	t.roles = result.Data.RolesWithAccess

	if t.initialLoadFired {
		return
	}
	t.initialLoadFired = true
	if t.field.IsAPIAccessEnabled == nil && t.OnInitialLoad != nil {
		t.OnInitialLoad(result.Data.HasAPIAccess)
	}
}

// State is the state behind the switch.
func (t *APIAccessToggle) State() ToggleState {
	if t.field.IsAPIAccessEnabled != nil {
		return Pending(*t.field.IsAPIAccessEnabled)
	}
	return t.server
}

// Server is the last server-derived state.
func (t *APIAccessToggle) Server() ToggleState {
	return t.server
}

// Checked is the displayed switch position.
func (t *APIAccessToggle) Checked() bool {
	return t.State().Display()
}

// Disabled reports whether the switch ignores input.
func (t *APIAccessToggle) Disabled() bool {
	return t.loading && !t.ReadSkipped()
}

// Toggle flips the displayed value and reports it through OnChange.
func (t *APIAccessToggle) Toggle() {
	if t.Disabled() {
		return
	}
	if t.OnChange != nil {
		t.OnChange(!t.Checked())
	}
}

// Update handles the toggle key and spinner ticks.
func (t *APIAccessToggle) Update(msg tea.Msg) (*APIAccessToggle, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !t.loading {
			return t, nil
		}
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		return t, cmd
	case tea.KeyMsg:
		if t.focused && key.Matches(msg, t.keys.Toggle) {
			t.Toggle()
		}
	}
	return t, nil
}

// View renders the switch with its status line.
func (t *APIAccessToggle) View() string {
	sw := components.Switch{
		Label:    "Enable Data API access",
		On:       t.Checked(),
		Disabled: t.Disabled(),
		Focused:  t.focused,
	}

	var status string
	switch {
	case t.Disabled():
		status = t.spinner.View() + " checking grants"
	case t.loadErr != nil:
		status = styles.ErrorStyle.Render("could not read grants: " + t.loadErr.Error())
	case t.State().IsPending() && t.server.IsServerDerived() && t.State().Display() != t.server.Display():
		status = styles.WarningStyle.Render("unsaved change")
	case t.server.IsServerDerived() && len(t.roles) > 0:
		status = styles.MutedStyle.Render("granted to " + strings.Join(t.roles.Sorted(), ", "))
	case t.server.IsServerDerived():
		status = styles.MutedStyle.Render("not reachable through the Data API")
	}

	if status == "" {
		return sw.View()
	}
	return sw.View() + "\n    " + status
}
