// Package tables provides the Tables view: the relations of a project with
// their Data API access, and the editor that changes it.
package tables

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/ui"
	"github.com/willibrandon/studio/internal/ui/styles"
	"github.com/willibrandon/studio/internal/ui/views"
)

// TablesView lists relations and hosts the editor.
type TablesView struct {
	width  int
	height int

	project   privileges.ProjectVars
	relations []models.RelationPrivileges
	loading   bool
	err       error

	selectedIdx  int
	scrollOffset int

	editor *Editor
	grants GrantsPanel
	keys   ui.KeyMap
}

// NewTablesView creates the view.
func NewTablesView() *TablesView {
	return &TablesView{keys: ui.DefaultKeyMap()}
}

// Init loads the relations of the current project.
func (v *TablesView) Init() tea.Cmd {
	return v.refresh(false)
}

// SetProject switches project, closing any open editor.
func (v *TablesView) SetProject(ref, connectionString string) tea.Cmd {
	v.project = privileges.ProjectVars{ProjectRef: ref, ConnectionString: connectionString}
	v.relations = nil
	v.err = nil
	v.selectedIdx = 0
	v.scrollOffset = 0
	return tea.Batch(v.closeEditor(), v.refresh(false))
}

// SetSize sets the dimensions of the view
func (v *TablesView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.grants.SetSize(v.sideWidth(), height)
	if v.editor != nil {
		v.editor.SetWidth(v.sideWidth())
	}
}

// Capturing reports whether the editor's name input has focus.
func (v *TablesView) Capturing() bool {
	return v.editor != nil && v.editor.Capturing()
}

// Editor returns the open editor, if any.
func (v *TablesView) Editor() *Editor {
	return v.editor
}

// Relations returns the loaded relations.
func (v *TablesView) Relations() []models.RelationPrivileges {
	return v.relations
}

func (v *TablesView) refresh(force bool) tea.Cmd {
	if v.project.ProjectRef == "" {
		return nil
	}
	v.loading = true
	project := v.project
	return func() tea.Msg {
		return ui.RefreshTablePrivilegesCmd{
			ProjectRef:       project.ProjectRef,
			ConnectionString: project.ConnectionString,
			Force:            force,
		}
	}
}

// Update handles messages for the view.
func (v *TablesView) Update(msg tea.Msg) (views.ViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.TablePrivilegesMsg:
		if msg.ProjectRef != v.project.ProjectRef {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.relations = msg.Relations
		}
		v.clampSelection()
		return v, nil

	case ui.TableAPIAccessMsg:
		if v.editor != nil {
			var cmd tea.Cmd
			v.editor, cmd = v.editor.Update(msg)
			return v, cmd
		}
		return v, nil

	case ui.TableSavedMsg:
		if v.editor == nil || msg.Save.ProjectRef != v.project.ProjectRef {
			return v, nil
		}
		v.editor.Saved(msg)
		if msg.Err != nil {
			return v, nil
		}
		if msg.Save.Create {
			return v, tea.Batch(v.closeEditor(), v.refresh(true))
		}
		return v, v.refresh(false)

	case tea.KeyMsg:
		return v.handleKey(msg)
	}

	if v.editor != nil {
		var cmd tea.Cmd
		v.editor, cmd = v.editor.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *TablesView) handleKey(msg tea.KeyMsg) (views.ViewModel, tea.Cmd) {
	if v.editor != nil {
		if key.Matches(msg, v.keys.CloseDialog) {
			return v, v.closeEditor()
		}
		var cmd tea.Cmd
		v.editor, cmd = v.editor.Update(msg)
		return v, cmd
	}

	switch {
	case key.Matches(msg, v.keys.Up):
		v.moveSelection(-1)
	case key.Matches(msg, v.keys.Down):
		v.moveSelection(1)
	case key.Matches(msg, v.keys.Home):
		v.selectedIdx = 0
		v.scrollOffset = 0
	case key.Matches(msg, v.keys.End):
		v.moveSelection(len(v.relations))
	case key.Matches(msg, v.keys.Refresh):
		return v, v.refresh(true)
	case key.Matches(msg, v.keys.Edit):
		if rel := v.selected(); rel != nil {
			field := TableField{ID: rel.RelationID, Schema: rel.Schema, Name: rel.Name}
			return v, v.openEditor(field, EditExisting)
		}
	case key.Matches(msg, v.keys.NewTable):
		return v, v.openEditor(TableField{Schema: "public"}, EditNew)
	case key.Matches(msg, v.keys.Duplicate):
		if rel := v.selected(); rel != nil {
			access := privileges.ProjectAPIAccess(v.relations, rel.RelationID, rel.Schema, rel.Name)
			enabled := access.HasAPIAccess
			field := TableField{
				Schema:             rel.Schema,
				Name:               rel.Name + "_copy",
				IsAPIAccessEnabled: &enabled,
			}
			return v, v.openEditor(field, EditDuplicate)
		}
	}
	return v, nil
}

func (v *TablesView) openEditor(field TableField, mode EditorMode) tea.Cmd {
	v.editor = NewEditor(v.project, field, mode)
	v.editor.SetWidth(v.sideWidth())

	cmds := []tea.Cmd{v.editor.Init()}
	if mode == EditExisting {
		vars := v.editor.Toggle().Variables()
		cmds = append(cmds, func() tea.Msg {
			return ui.WatchTableAPIAccessCmd{Vars: vars}
		})
	}
	return tea.Batch(cmds...)
}

func (v *TablesView) closeEditor() tea.Cmd {
	if v.editor == nil {
		return nil
	}
	watching := v.editor.Mode() == EditExisting
	v.editor = nil
	if !watching {
		return nil
	}
	return func() tea.Msg {
		return ui.WatchTableAPIAccessCmd{}
	}
}

func (v *TablesView) selected() *models.RelationPrivileges {
	if v.selectedIdx < 0 || v.selectedIdx >= len(v.relations) {
		return nil
	}
	return &v.relations[v.selectedIdx]
}

func (v *TablesView) moveSelection(delta int) {
	v.selectedIdx += delta
	v.clampSelection()
}

func (v *TablesView) clampSelection() {
	if v.selectedIdx >= len(v.relations) {
		v.selectedIdx = len(v.relations) - 1
	}
	if v.selectedIdx < 0 {
		v.selectedIdx = 0
	}

	visible := v.listHeight()
	if v.selectedIdx < v.scrollOffset {
		v.scrollOffset = v.selectedIdx
	}
	if v.selectedIdx >= v.scrollOffset+visible {
		v.scrollOffset = v.selectedIdx - visible + 1
	}
}

func (v *TablesView) listHeight() int {
	return max(v.height-4, 1)
}

func (v *TablesView) listWidth() int {
	if v.width <= 0 {
		return 60
	}
	return max(v.width*3/5, 30)
}

func (v *TablesView) sideWidth() int {
	if v.width <= 0 {
		return 50
	}
	return max(v.width-v.listWidth()-1, 30)
}

// View renders the view.
func (v *TablesView) View() string {
	if v.project.ProjectRef == "" {
		return styles.MutedStyle.Render("No project configured")
	}

	list := v.renderList()

	var side string
	if v.editor != nil {
		side = v.editor.View()
	} else {
		v.grants.SetRelation(v.selected())
		side = v.grants.View()
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, list, " ", side)
}

func (v *TablesView) renderList() string {
	var b strings.Builder
	width := v.listWidth()

	title := fmt.Sprintf("Relations (%d)", len(v.relations))
	if v.loading {
		title += " loading..."
	}
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n")

	nameWidth := max(width-24, 12)
	b.WriteString(styles.TableHeaderStyle.Width(width).Render(
		fmt.Sprintf("  %-*s %-8s %s", nameWidth, "Name", "API", "Roles")))
	b.WriteString("\n")

	if v.err != nil {
		b.WriteString(styles.ErrorStyle.Render(v.err.Error()))
		return lipgloss.NewStyle().Width(width).Render(b.String())
	}
	if len(v.relations) == 0 && !v.loading {
		b.WriteString(styles.MutedStyle.Render("No relations"))
		return lipgloss.NewStyle().Width(width).Render(b.String())
	}

	end := min(v.scrollOffset+v.listHeight(), len(v.relations))
	for i := v.scrollOffset; i < end; i++ {
		rel := v.relations[i]
		access := privileges.ProjectAPIAccess(v.relations, rel.RelationID, rel.Schema, rel.Name)

		api := "off"
		if access.HasAPIAccess {
			api = "on"
		}
		cursor := "  "
		if i == v.selectedIdx {
			cursor = "> "
		}
		line := fmt.Sprintf("%s%-*s %-8s %s", cursor, nameWidth,
			truncate(rel.QualifiedName(), nameWidth), api, strings.Join(access.RolesWithAccess.Sorted(), ","))

		switch {
		case i == v.selectedIdx:
			line = styles.TableSelectedStyle.Width(width).Render(line)
		case !access.HasAPIAccess:
			line = styles.MutedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().Width(width).Render(strings.TrimRight(b.String(), "\n"))
}
