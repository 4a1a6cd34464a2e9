// Package storage provides the Storage settings view and its global file
// size limit panel.
package storage

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/willibrandon/studio/internal/buckets"
	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/db/queries"
	"github.com/willibrandon/studio/internal/ui"
	"github.com/willibrandon/studio/internal/ui/components"
	"github.com/willibrandon/studio/internal/ui/styles"
	"github.com/willibrandon/studio/internal/ui/views"
)

// ValidateTooltip explains the validate button.
const ValidateTooltip = "Check that all existing buckets fit within this limit"

// SizeLimitPanel checks a proposed global file size limit against the
// buckets with the largest limits. The scan starts only on an explicit
// validate; when the bucket table may be large it asks first.
type SizeLimitPanel struct {
	width  int
	height int

	projectRef string
	threshold  int64

	limitInput textinput.Model
	editing    bool
	limit      *int64
	limitErr   error

	estimate      *int64
	estimateKnown bool
	condition     buckets.RunCondition

	scanning bool
	scanned  bool
	buckets  []models.Bucket
	scanErr  error

	dialog  *components.ConfirmDialog
	tooltip *components.Tooltip
	chart   *components.BucketChart
	spinner spinner.Model
	keys    ui.KeyMap
}

// NewSizeLimitPanel creates the panel with the given estimate threshold.
func NewSizeLimitPanel(threshold int64) *SizeLimitPanel {
	if threshold < 0 {
		threshold = buckets.DefaultScanThreshold
	}

	input := textinput.New()
	input.Placeholder = "50MB"
	input.CharLimit = 20

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.AccentStyle

	tip := components.NewTooltip(ValidateTooltip, 40)
	tip.Visible = true

	return &SizeLimitPanel{
		threshold:  threshold,
		limitInput: input,
		condition:  buckets.RunConfirm,
		dialog:     components.NewConfirmDialog(),
		tooltip:    tip,
		chart:      components.NewBucketChart(),
		spinner:    s,
		keys:       ui.DefaultKeyMap(),
	}
}

// Init requests the bucket estimate.
func (p *SizeLimitPanel) Init() tea.Cmd {
	if p.projectRef == "" {
		return nil
	}
	return func() tea.Msg { return ui.EstimateBucketsCmd{} }
}

// SetProject resets the panel for another project.
func (p *SizeLimitPanel) SetProject(ref, _ string) tea.Cmd {
	p.projectRef = ref
	p.estimate = nil
	p.estimateKnown = false
	p.condition = buckets.RunConfirm
	p.scanning = false
	p.scanned = false
	p.buckets = nil
	p.scanErr = nil
	p.dialog.Hide()
	p.chart.SetBuckets(nil)
	return p.Init()
}

// SetSize sets the dimensions of the view
func (p *SizeLimitPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.dialog.SetSize(width, height)
	p.chart.SetSize(width - 4)
	p.tooltip.Width = min(max(width/3, 20), 50)
}

// SetSQLStyle selects the chroma style of the confirm dialog.
func (p *SizeLimitPanel) SetSQLStyle(style string) {
	p.dialog.SetSQLStyle(style)
}

// Capturing reports whether the panel consumes typed keys.
func (p *SizeLimitPanel) Capturing() bool {
	return p.editing || p.dialog.IsVisible()
}

// Condition returns the current run condition.
func (p *SizeLimitPanel) Condition() buckets.RunCondition { return p.condition }

// Limit returns the parsed proposed limit, if any.
func (p *SizeLimitPanel) Limit() *int64 { return p.limit }

// Buckets returns the scan result.
func (p *SizeLimitPanel) Buckets() []models.Bucket { return p.buckets }

// DialogVisible reports whether the confirm dialog is shown.
func (p *SizeLimitPanel) DialogVisible() bool { return p.dialog.IsVisible() }

// Scanning reports whether the scan is running.
func (p *SizeLimitPanel) Scanning() bool { return p.scanning }

// SetLimit parses a proposed limit such as "50MB" or "1 GiB". An empty
// string clears it.
func (p *SizeLimitPanel) SetLimit(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		p.limit = nil
		p.limitErr = nil
		p.chart.SetLimit(nil)
		return nil
	}
	v, err := buckets.ParseSizeLimit(s)
	if err != nil {
		p.limitErr = err
		return p.limitErr
	}
	p.limit = &v
	p.limitErr = nil
	p.chart.SetLimit(p.limit)
	return nil
}

// Validate is the validate button: it scans at once when the run
// condition is auto and asks for confirmation otherwise.
func (p *SizeLimitPanel) Validate() tea.Cmd {
	if p.scanning || p.projectRef == "" {
		return nil
	}
	if p.condition == buckets.RunAuto {
		return p.startScan()
	}

	message := "The bucket table may be large and this check has no index to use, so it reads every bucket."
	if p.estimateKnown && p.estimate != nil {
		message = fmt.Sprintf("The bucket table has about %s rows and this check has no index to use, so it reads every bucket.",
			humanize.Comma(*p.estimate))
	}
	p.dialog.Show("Check bucket size limits?", message, strings.TrimSpace(queries.LargestSizeLimitBucketsSQL))
	return nil
}

func (p *SizeLimitPanel) startScan() tea.Cmd {
	p.scanning = true
	p.scanErr = nil
	return tea.Batch(p.spinner.Tick, func() tea.Msg { return ui.FetchLargestBucketsCmd{} })
}

// Update handles messages for the view.
func (p *SizeLimitPanel) Update(msg tea.Msg) (views.ViewModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.BucketEstimateMsg:
		if msg.ProjectRef != p.projectRef {
			return p, nil
		}
		p.estimate = msg.Estimate
		p.estimateKnown = true
		p.condition = msg.Condition
		if msg.Threshold > 0 {
			p.threshold = msg.Threshold
		}
		return p, nil

	case ui.LargestBucketsMsg:
		if msg.ProjectRef != p.projectRef {
			return p, nil
		}
		p.scanning = false
		p.scanErr = msg.Err
		if msg.Err == nil {
			p.scanned = true
			p.buckets = msg.Buckets
			p.chart.SetBuckets(msg.Buckets)
		}
		return p, nil

	case spinner.TickMsg:
		if !p.scanning {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	if p.editing {
		var cmd tea.Cmd
		p.limitInput, cmd = p.limitInput.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *SizeLimitPanel) handleKey(msg tea.KeyMsg) (views.ViewModel, tea.Cmd) {
	if p.dialog.IsVisible() {
		switch {
		case key.Matches(msg, p.keys.Confirm):
			p.dialog.Hide()
			return p, p.startScan()
		case key.Matches(msg, p.keys.Cancel):
			p.dialog.Hide()
		}
		return p, nil
	}

	if p.editing {
		switch msg.String() {
		case "enter":
			if err := p.SetLimit(p.limitInput.Value()); err != nil {
				return p, nil
			}
			p.editing = false
			p.limitInput.Blur()
			return p, nil
		case "esc":
			p.editing = false
			p.limitInput.Blur()
			return p, nil
		}
		var cmd tea.Cmd
		p.limitInput, cmd = p.limitInput.Update(msg)
		return p, cmd
	}

	switch {
	case key.Matches(msg, p.keys.EditLimit):
		p.editing = true
		return p, p.limitInput.Focus()
	case key.Matches(msg, p.keys.Validate):
		return p, p.Validate()
	case key.Matches(msg, p.keys.Refresh):
		if p.projectRef == "" {
			return p, nil
		}
		return p, func() tea.Msg { return ui.EstimateBucketsCmd{Refresh: true} }
	}
	return p, nil
}

// View renders the panel.
func (p *SizeLimitPanel) View() string {
	if p.projectRef == "" {
		return styles.MutedStyle.Render("No project configured")
	}
	if p.dialog.IsVisible() {
		return lipgloss.Place(p.width, p.height, lipgloss.Center, lipgloss.Center, p.dialog.View())
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Global file size limit"))
	b.WriteString("\n\n")

	b.WriteString(styles.PanelLabelStyle.Render("Proposed limit  "))
	switch {
	case p.editing:
		b.WriteString(p.limitInput.View())
	case p.limit != nil:
		b.WriteString(humanize.IBytes(uint64(*p.limit)))
	default:
		b.WriteString(styles.MutedStyle.Render("not set"))
	}
	if p.limitErr != nil {
		b.WriteString("  " + styles.ErrorStyle.Render(p.limitErr.Error()))
	}
	b.WriteString("\n")

	b.WriteString(styles.PanelLabelStyle.Render("Bucket estimate "))
	switch {
	case !p.estimateKnown:
		b.WriteString(styles.MutedStyle.Render("checking..."))
	case p.estimate == nil:
		b.WriteString(styles.MutedStyle.Render("unknown"))
	default:
		b.WriteString(humanize.Comma(*p.estimate))
	}
	b.WriteString("\n")

	b.WriteString(styles.PanelLabelStyle.Render("Validation      "))
	if p.condition == buckets.RunAuto {
		b.WriteString(styles.SuccessStyle.Render("runs immediately"))
	} else {
		b.WriteString(styles.WarningStyle.Render(fmt.Sprintf("asks first (more than %s buckets or unknown)", humanize.Comma(p.threshold))))
	}
	b.WriteString("\n\n")

	button := styles.DialogButtonActiveStyle.Render("Validate size limit")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, button, " ", p.tooltip.View()))
	b.WriteString("\n\n")

	switch {
	case p.scanning:
		b.WriteString(p.spinner.View() + " Reading buckets...")
	case p.scanErr != nil:
		b.WriteString(styles.ErrorStyle.Render("Failed to read buckets: " + p.scanErr.Error()))
	case p.scanned:
		b.WriteString(p.renderResults())
	}
	b.WriteString("\n\n")
	b.WriteString(styles.FooterHintStyle.Render("[e] Edit limit  [v] Validate  [r] Refresh estimate"))

	return b.String()
}

func (p *SizeLimitPanel) renderResults() string {
	if len(p.buckets) == 0 {
		return styles.MutedStyle.Render("No buckets")
	}

	var b strings.Builder
	b.WriteString(styles.AccentStyle.Render(fmt.Sprintf("Buckets with the largest limits (%d)", len(p.buckets))))
	b.WriteString("\n")

	for _, bucket := range p.buckets {
		size := "no limit"
		if bucket.FileSizeLimit != nil {
			size = humanize.IBytes(uint64(*bucket.FileSizeLimit))
		}
		line := fmt.Sprintf("  %-32s %s", bucket.Name, size)
		if p.limit != nil && bucket.Exceeds(*p.limit) {
			line = styles.ErrorStyle.Render(line + "  exceeds limit")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if p.limit != nil {
		over := buckets.ExceedingLimit(p.buckets, *p.limit)
		if len(over) == 0 {
			b.WriteString(styles.SuccessStyle.Render("All listed buckets fit within " + humanize.IBytes(uint64(*p.limit))))
		} else {
			b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("%d bucket(s) exceed %s", len(over), humanize.IBytes(uint64(*p.limit)))))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(p.chart.View())
	return b.String()
}
