package tables

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/ui"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// EditorMode says what the editor form represents.
type EditorMode int

const (
	EditExisting EditorMode = iota
	EditNew
	EditDuplicate
)

type editorFocus int

const (
	focusName editorFocus = iota
	focusToggle
)

// Editor is the side panel for one relation. It owns the draft and turns
// it into a save request.
type Editor struct {
	project privileges.ProjectVars
	mode    EditorMode
	field   TableField
	toggle  *APIAccessToggle

	nameInput textinput.Model
	focus     editorFocus
	saving    bool
	status    string
	err       error
	width     int
	keys      ui.KeyMap
}

// NewEditor creates an editor for field.
func NewEditor(project privileges.ProjectVars, field TableField, mode EditorMode) *Editor {
	if mode != EditExisting {
		field.ID = 0
		if field.Schema == "" {
			field.Schema = "public"
		}
	}

	e := &Editor{
		project: project,
		mode:    mode,
		field:   field,
		keys:    ui.DefaultKeyMap(),
	}

	e.toggle = NewAPIAccessToggle(project, field, mode == EditNew, mode == EditDuplicate)
	e.toggle.OnChange = e.setAPIAccess
	e.toggle.OnInitialLoad = e.setAPIAccess

	e.nameInput = textinput.New()
	e.nameInput.Placeholder = "table_name"
	e.nameInput.CharLimit = 63
	e.nameInput.SetValue(field.Name)

	if mode == EditExisting {
		e.focus = focusToggle
		e.toggle.SetFocused(true)
	} else {
		e.nameInput.Focus()
	}
	return e
}

func (e *Editor) setAPIAccess(enabled bool) {
	e.field.IsAPIAccessEnabled = &enabled
	e.toggle.SetField(e.field)
}

// Init starts the API-access read.
func (e *Editor) Init() tea.Cmd {
	if e.mode == EditExisting {
		return e.toggle.Load(false)
	}
	return textinput.Blink
}

// Mode returns the editor mode.
func (e *Editor) Mode() EditorMode { return e.mode }

// Field returns the current draft.
func (e *Editor) Field() TableField { return e.field }

// Toggle returns the Data API switch.
func (e *Editor) Toggle() *APIAccessToggle { return e.toggle }

// Saving reports whether a save is in flight.
func (e *Editor) Saving() bool { return e.saving }

// Capturing reports whether typed keys go to the name input.
func (e *Editor) Capturing() bool {
	return e.mode != EditExisting && e.focus == focusName
}

// SetWidth sets the panel width.
func (e *Editor) SetWidth(width int) {
	e.width = width
	e.nameInput.Width = max(width-12, 10)
}

// PendingChange returns the API-access value the save must apply and
// whether anything must be applied. A new table always applies the
// displayed value; an existing one only when the draft differs from the
// server.
func (e *Editor) PendingChange() (enabled bool, changed bool) {
	if e.mode != EditExisting {
		return e.toggle.Checked(), true
	}
	if e.field.IsAPIAccessEnabled == nil {
		return false, false
	}
	draft := *e.field.IsAPIAccessEnabled
	server := e.toggle.Server()
	if server.IsUnknown() {
		return draft, true
	}
	return draft, draft != server.Display()
}

// errNothingToSave is reported when an existing relation has no change.
var errNothingToSave = errors.New("no changes to save")

// SaveRequest builds the save for the current draft.
func (e *Editor) SaveRequest() (ui.TableSave, error) {
	save := ui.TableSave{
		ProjectRef:       e.project.ProjectRef,
		ConnectionString: e.project.ConnectionString,
		RelationID:       e.field.ID,
		Schema:           e.field.Schema,
		Name:             e.field.Name,
	}

	if e.mode != EditExisting {
		save.Name = strings.TrimSpace(e.nameInput.Value())
		if save.Name == "" {
			return ui.TableSave{}, errors.New("table name is required")
		}
		save.Create = true
	}

	enabled, changed := e.PendingChange()
	if changed {
		save.APIAccess = &enabled
	}
	if !save.Create && save.APIAccess == nil {
		return ui.TableSave{}, errNothingToSave
	}
	return save, nil
}

// Save starts the save flow.
func (e *Editor) Save() tea.Cmd {
	if e.saving {
		return nil
	}
	save, err := e.SaveRequest()
	if errors.Is(err, errNothingToSave) {
		e.status = "No changes"
		e.err = nil
		return nil
	}
	if err != nil {
		e.err = err
		return nil
	}

	e.saving = true
	e.err = nil
	e.status = ""
	return func() tea.Msg {
		return ui.SaveTableCmd{Save: save}
	}
}

// Saved records the end of a save.
func (e *Editor) Saved(msg ui.TableSavedMsg) {
	e.saving = false
	if msg.Err != nil {
		e.err = msg.Err
		return
	}
	e.err = nil
	e.status = "Saved"
}

// Update handles editor input.
func (e *Editor) Update(msg tea.Msg) (*Editor, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.TableAPIAccessMsg:
		if msg.Vars.Key().Equal(e.toggle.Variables().Key()) {
			e.toggle.Loaded(msg.Result, msg.Err)
		}
		return e, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, e.keys.Save):
			return e, e.Save()
		case msg.String() == "tab" && e.mode != EditExisting:
			e.switchFocus()
			return e, nil
		}

		if e.focus == focusName {
			var cmd tea.Cmd
			e.nameInput, cmd = e.nameInput.Update(msg)
			e.field.Name = e.nameInput.Value()
			return e, cmd
		}
		var cmd tea.Cmd
		e.toggle, cmd = e.toggle.Update(msg)
		return e, cmd
	}

	var cmd tea.Cmd
	e.toggle, cmd = e.toggle.Update(msg)
	if e.focus == focusName {
		var inputCmd tea.Cmd
		e.nameInput, inputCmd = e.nameInput.Update(msg)
		cmd = tea.Batch(cmd, inputCmd)
	}
	return e, cmd
}

func (e *Editor) switchFocus() {
	if e.focus == focusName {
		e.focus = focusToggle
		e.nameInput.Blur()
		e.toggle.SetFocused(true)
		return
	}
	e.focus = focusName
	e.nameInput.Focus()
	e.toggle.SetFocused(false)
}

// View renders the editor panel.
func (e *Editor) View() string {
	var title string
	switch e.mode {
	case EditNew:
		title = "New table"
	case EditDuplicate:
		title = "Duplicate table"
	default:
		title = fmt.Sprintf("Edit %s.%s", e.field.Schema, e.field.Name)
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n\n")

	if e.mode != EditExisting {
		b.WriteString(styles.PanelLabelStyle.Render("Name   "))
		b.WriteString(e.nameInput.View())
		b.WriteString("\n")
		b.WriteString(styles.PanelLabelStyle.Render("Schema " + e.field.Schema))
		b.WriteString("\n\n")
	}

	b.WriteString(e.toggle.View())
	b.WriteString("\n\n")

	switch {
	case e.saving:
		b.WriteString(styles.WarningStyle.Render("Saving..."))
	case e.err != nil:
		b.WriteString(styles.ErrorStyle.Render(e.err.Error()))
	case e.status != "":
		b.WriteString(styles.SuccessStyle.Render(e.status))
	}
	b.WriteString("\n")

	hint := "[space] Toggle  [ctrl+s] Save  [esc] Close"
	if e.mode != EditExisting {
		hint = "[tab] Next field  " + hint
	}
	b.WriteString(styles.FooterHintStyle.Render(hint))

	panel := styles.PanelStyle
	if e.width > 0 {
		panel = panel.Width(e.width - 2)
	}
	return panel.Render(b.String())
}
