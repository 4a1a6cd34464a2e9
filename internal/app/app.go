// Package app hosts the interactive console and the services shared with
// the CLI and the HTTP API.
package app

import (
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/willibrandon/studio/internal/config"
	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/ui"
	"github.com/willibrandon/studio/internal/ui/components"
	"github.com/willibrandon/studio/internal/ui/styles"
	"github.com/willibrandon/studio/internal/ui/views"
	"github.com/willibrandon/studio/internal/ui/views/storage"
	"github.com/willibrandon/studio/internal/ui/views/tables"
)

// eventBuffer is the capacity of the channel relaying cache invalidations.
const eventBuffer = 16

// chromeHeight is the number of lines used by header, status bar and footer.
const chromeHeight = 4

var errNoProjects = errors.New("no projects configured")

// Model represents the main Bubbletea application model
type Model struct {
	config   *config.Config
	services *Services
	mutator  *privileges.Mutator
	toaster  *components.Toaster

	// Project state
	projects      []string
	projectIdx    int
	project       privileges.ProjectVars
	connected     bool
	connectionErr error

	// UI state
	width  int
	height int

	keys      ui.KeyMap
	help      *components.HelpText
	logs      *components.LogPanel
	statusBar *components.StatusBar

	// Views
	currentView views.ViewType
	viewList    []views.ViewType
	tables      *tables.TablesView
	storage     *storage.SizeLimitPanel

	// Cache invalidations relayed into the update loop
	events         chan CacheInvalidatedMsg
	unwatchProject func()
	unwatchTable   func()
	watched        privileges.TableAPIAccessVariables

	inflight    int
	helpVisible bool
	quitting    bool
	ready       bool
}

// New creates the console for cfg, starting on the default project.
func New(cfg *config.Config, services *Services) (*Model, error) {
	refs := cfg.ProjectRefs()
	if len(refs) == 0 {
		return nil, errNoProjects
	}

	toaster := components.NewToaster(components.DefaultToastTTL)

	statusBar := components.NewStatusBar()
	statusBar.SetDateFormat(cfg.UI.DateFormat)

	sizeLimit := storage.NewSizeLimitPanel(cfg.Storage.SizeLimitScanThreshold)
	sizeLimit.SetSQLStyle(styles.SQLTheme(cfg.UI.Theme))

	m := &Model{
		config:      cfg,
		services:    services,
		mutator:     services.Mutator(toaster),
		toaster:     toaster,
		projects:    refs,
		projectIdx:  max(slices.Index(refs, cfg.DefaultProject), 0),
		keys:        ui.DefaultKeyMap(),
		help:        components.NewHelp(),
		logs:        components.NewLogPanel(),
		statusBar:   statusBar,
		currentView: views.ViewTables,
		viewList:    []views.ViewType{views.ViewTables, views.ViewStorage},
		tables:      tables.NewTablesView(),
		storage:     sizeLimit,
		events:      make(chan CacheInvalidatedMsg, eventBuffer),
	}
	if err := m.useProject(m.projectIdx); err != nil {
		return nil, err
	}
	return m, nil
}

// Init connects to the starting project
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		connectProject(m.services, m.project),
		tickStatusBar(m.config.UI.RefreshInterval),
		waitForCacheEvent(m.events),
	)
}

// useProject points the model at the idx-th project and subscribes to its
// cache namespace. Views are reset once the connection succeeds.
func (m *Model) useProject(idx int) error {
	project, err := m.services.Project(m.projects[idx])
	if err != nil {
		return err
	}

	m.stopWatching()
	if m.unwatchProject != nil {
		m.unwatchProject()
	}

	m.projectIdx = idx
	m.project = project
	m.connected = false
	m.connectionErr = nil
	m.statusBar = components.NewStatusBar()
	m.statusBar.SetDateFormat(m.config.UI.DateFormat)
	m.statusBar.SetSize(m.width)
	m.statusBar.SetProject(project.ProjectRef)

	m.unwatchProject = m.services.Cache.Subscribe(
		querykey.Project(project.ProjectRef),
		cacheListener(m.events, project.ProjectRef, false),
	)
	return nil
}

func (m *Model) stopWatching() {
	if m.unwatchTable != nil {
		m.unwatchTable()
		m.unwatchTable = nil
	}
	m.watched = privileges.TableAPIAccessVariables{}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		m.logs.SetSize(msg.Width, msg.Height)
		m.statusBar.SetSize(msg.Width)
		m.toaster.SetWidth(msg.Width)
		contentHeight := max(msg.Height-chromeHeight, 1)
		m.tables.SetSize(msg.Width, contentHeight)
		m.storage.SetSize(msg.Width, contentHeight)
		m.ready = true
		return m, nil

	case ProjectConnectedMsg:
		if msg.ProjectRef != m.project.ProjectRef {
			return m, nil
		}
		m.connected = true
		m.connectionErr = nil
		m.statusBar.SetConnected(msg.Version)
		return m, tea.Batch(
			m.tables.SetProject(m.project.ProjectRef, m.project.ConnectionString),
			m.storage.SetProject(m.project.ProjectRef, m.project.ConnectionString),
		)

	case ProjectConnectionFailedMsg:
		if msg.ProjectRef != m.project.ProjectRef {
			return m, nil
		}
		m.connected = false
		m.connectionErr = msg.Err
		m.statusBar.SetDisconnected(msg.Err)
		return m, nil

	case StatusBarTickMsg:
		m.statusBar.SetTimestamp(msg.Timestamp)
		m.statusBar.SetBusy(m.inflight)
		return m, tickStatusBar(m.config.UI.RefreshInterval)

	case CacheInvalidatedMsg:
		return m, tea.Batch(m.handleInvalidation(msg), waitForCacheEvent(m.events))

	// Requests from views
	case ui.RefreshTablePrivilegesCmd:
		m.inflight++
		return m, loadTablePrivileges(m.services.Reader, msg)

	case ui.LoadTableAPIAccessCmd:
		m.inflight++
		return m, loadTableAPIAccess(m.services.Access, msg)

	case ui.WatchTableAPIAccessCmd:
		m.stopWatching()
		if msg.Vars.Enabled() {
			m.watched = msg.Vars
			m.unwatchTable = m.services.Access.Subscribe(msg.Vars,
				cacheListener(m.events, msg.Vars.ProjectRef, true))
		}
		return m, nil

	case ui.SaveTableCmd:
		m.inflight++
		return m, saveTable(m.services, m.mutator, msg.Save)

	case ui.EstimateBucketsCmd:
		m.inflight++
		return m, estimateBuckets(m.project.ProjectRef, m.services.Buckets(m.project), msg.Refresh)

	case ui.FetchLargestBucketsCmd:
		m.inflight++
		return m, fetchLargestBuckets(m.project.ProjectRef, m.services.Buckets(m.project))

	// Results for views
	case ui.TablePrivilegesMsg, ui.TableAPIAccessMsg:
		m.done()
		_, cmd := m.tables.Update(msg)
		return m, cmd

	case ui.TableSavedMsg:
		m.done()
		if msg.Err == nil {
			m.toaster.Info("Saved " + msg.Save.Name)
		}
		_, cmd := m.tables.Update(msg)
		return m, cmd

	case ui.BucketEstimateMsg, ui.LargestBucketsMsg:
		m.done()
		_, cmd := m.storage.Update(msg)
		return m, cmd
	}

	// Spinner ticks and anything else go to both views; each ignores what
	// it does not own.
	_, tablesCmd := m.tables.Update(msg)
	_, storageCmd := m.storage.Update(msg)
	return m, tea.Batch(tablesCmd, storageCmd)
}

func (m *Model) done() {
	m.inflight = max(m.inflight-1, 0)
}

// handleInvalidation rereads what an invalidation made stale.
func (m *Model) handleInvalidation(msg CacheInvalidatedMsg) tea.Cmd {
	if msg.ProjectRef != m.project.ProjectRef {
		return nil
	}

	if msg.Watch {
		if !m.watched.Enabled() {
			return nil
		}
		m.inflight++
		return loadTableAPIAccess(m.services.Access, ui.LoadTableAPIAccessCmd{
			Vars: m.watched, Enabled: true, Refetch: true,
		})
	}

	if !msg.Event.Key.Overlaps(querykey.TablePrivileges(msg.ProjectRef)) {
		return nil
	}
	m.inflight++
	cmds := []tea.Cmd{loadTablePrivileges(m.services.Reader, ui.RefreshTablePrivilegesCmd{
		ProjectRef:       m.project.ProjectRef,
		ConnectionString: m.project.ConnectionString,
	})}
	if m.watched.Enabled() {
		m.inflight++
		cmds = append(cmds, loadTableAPIAccess(m.services.Access, ui.LoadTableAPIAccessCmd{
			Vars: m.watched, Enabled: true,
		}))
	}
	return tea.Batch(cmds...)
}

func (m Model) activeView() views.ViewModel {
	if m.currentView == views.ViewStorage {
		return m.storage
	}
	return m.tables
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.logs.IsVisible() {
		_, cmd := m.logs.Update(msg)
		return m, cmd
	}

	if m.helpVisible {
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.CloseDialog) {
			m.helpVisible = false
		}
		return m, nil
	}

	// Text inputs and dialogs get every key
	if m.connected && m.activeView().Capturing() {
		_, cmd := m.activeView().Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.helpVisible = true
		return m, nil
	case key.Matches(msg, m.keys.Logs):
		m.logs.Toggle()
		return m, nil
	case key.Matches(msg, m.keys.JumpToTables):
		m.currentView = views.ViewTables
		return m, nil
	case key.Matches(msg, m.keys.JumpToStorage):
		m.currentView = views.ViewStorage
		return m, nil
	case key.Matches(msg, m.keys.NextView):
		m.cycleView(1)
		return m, nil
	case key.Matches(msg, m.keys.PrevView):
		m.cycleView(-1)
		return m, nil
	case key.Matches(msg, m.keys.NextProject):
		if len(m.projects) < 2 {
			return m, nil
		}
		if err := m.useProject((m.projectIdx + 1) % len(m.projects)); err != nil {
			m.toaster.Error(err.Error())
			return m, nil
		}
		return m, connectProject(m.services, m.project)
	case key.Matches(msg, m.keys.Refresh) && !m.connected:
		m.connectionErr = nil
		return m, connectProject(m.services, m.project)
	}

	if !m.connected {
		return m, nil
	}
	_, cmd := m.activeView().Update(msg)
	return m, cmd
}

// cycleView moves delta views along the view list
func (m *Model) cycleView(delta int) {
	idx := max(slices.Index(m.viewList, m.currentView), 0)
	n := len(m.viewList)
	m.currentView = m.viewList[((idx+delta)%n+n)%n]
}

// View renders the application UI
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if !m.ready {
		return "Initializing..."
	}

	if m.helpVisible {
		return m.help.View()
	}
	if m.logs.IsVisible() {
		return m.logs.View()
	}

	sections := []string{m.renderHeader(), m.renderCurrentView()}
	if toasts := m.toaster.View(); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, m.statusBar.View(), m.help.ShortHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title and view tabs
func (m Model) renderHeader() string {
	tabs := make([]string, 0, len(m.viewList))
	for i, v := range m.viewList {
		label := string(rune('1'+i)) + " " + v.String()
		if v == m.currentView {
			tabs = append(tabs, styles.AccentStyle.Bold(true).Render(label))
		} else {
			tabs = append(tabs, styles.MutedStyle.Render(label))
		}
	}
	return styles.TitleStyle.Render("Studio") + "  " + strings.Join(tabs, "  ")
}

// renderCurrentView renders the currently selected view
func (m Model) renderCurrentView() string {
	if m.connectionErr != nil {
		return styles.ErrorStyle.Render(m.describeConnectionError()) +
			"\n\n" + styles.MutedStyle.Render("Press r to retry, p for the next project.")
	}

	if !m.connected {
		return styles.MutedStyle.Render("Connecting to " + m.project.ProjectRef + "...")
	}

	return m.activeView().View()
}

// describeConnectionError picks the guidance matching the failure.
func (m Model) describeConnectionError() string {
	if strings.Contains(m.connectionErr.Error(), "password command failed") {
		if p, ok := m.config.Project(m.project.ProjectRef); ok {
			command := p.PasswordCommand
			if command == "" {
				command = m.config.Connection.PasswordCommand
			}
			return FormatPasswordCommandError(m.connectionErr, command)
		}
	}
	return FormatConnectionError(m.connectionErr)
}

// Cleanup removes the model's cache subscriptions
func (m *Model) Cleanup() {
	m.stopWatching()
	if m.unwatchProject != nil {
		m.unwatchProject()
		m.unwatchProject = nil
	}
}
