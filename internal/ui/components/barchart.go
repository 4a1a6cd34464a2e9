// Package components provides reusable UI components.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/pterm/pterm"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/ui/styles"
)

// BucketChart renders bucket file size limits as horizontal bars. Buckets
// whose limit exceeds the proposed global limit are drawn in the error
// color.
type BucketChart struct {
	width         int
	maxLabelWidth int
	buckets       []models.Bucket
	limit         *int64
}

// NewBucketChart creates an empty chart.
func NewBucketChart() *BucketChart {
	return &BucketChart{width: 80, maxLabelWidth: 24}
}

// SetSize updates the chart width. Widths below 40 are ignored.
func (c *BucketChart) SetSize(width int) {
	if width >= 40 {
		c.width = width
	}
}

// SetBuckets replaces the charted buckets.
func (c *BucketChart) SetBuckets(buckets []models.Bucket) {
	c.buckets = buckets
}

// SetLimit sets the proposed global limit. nil clears the highlight.
func (c *BucketChart) SetLimit(limit *int64) {
	c.limit = limit
}

// View renders the chart. Buckets without a limit are left out.
func (c *BucketChart) View() string {
	var (
		bars   pterm.Bars
		labels = make(map[string]bool)
	)
	for _, b := range c.buckets {
		if b.FileSizeLimit == nil {
			continue
		}
		label := truncateLabel(b.Name, c.maxLabelWidth)
		bars = append(bars, pterm.Bar{
			Label: label,
			Value: int(kib(*b.FileSizeLimit)),
		})
		labels[label] = c.limit != nil && b.Exceeds(*c.limit)
	}

	if len(bars) == 0 {
		return styles.MutedStyle.Render("No bucket has a file size limit")
	}

	pterm.DisableColor()
	defer pterm.EnableColor()

	chart, err := pterm.DefaultBarChart.
		WithBars(bars).
		WithHorizontal(true).
		WithShowValue(false).
		WithWidth(max(c.width-c.maxLabelWidth-20, 10)).
		Srender()
	if err != nil {
		return styles.ErrorStyle.Render("chart: " + err.Error())
	}

	return c.annotate(chart, labels)
}

// annotate colors each bar and appends the limit in human units.
func (c *BucketChart) annotate(chart string, over map[string]bool) string {
	sizes := make(map[string]string)
	for _, b := range c.buckets {
		if b.FileSizeLimit != nil {
			sizes[truncateLabel(b.Name, c.maxLabelWidth)] = humanize.IBytes(uint64(*b.FileSizeLimit))
		}
	}

	normal := lipgloss.NewStyle().Foreground(styles.ColorAccent)
	exceeded := lipgloss.NewStyle().Foreground(styles.ColorError)

	lines := strings.Split(strings.TrimRight(chart, "\n"), "\n")
	for i, line := range lines {
		for label, isOver := range over {
			if !strings.HasPrefix(strings.TrimSpace(line), label) {
				continue
			}
			style := normal
			if isOver {
				style = exceeded
			}
			lines[i] = colorBars(line, style) + " " + styles.MutedStyle.Render(sizes[label])
			break
		}
	}
	return strings.Join(lines, "\n")
}

func kib(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return max(n/1024, 1)
}

// colorBars styles the runs of block characters in line.
func colorBars(line string, style lipgloss.Style) string {
	var (
		out strings.Builder
		run strings.Builder
	)
	flush := func() {
		if run.Len() > 0 {
			out.WriteString(style.Render(run.String()))
			run.Reset()
		}
	}
	for _, r := range line {
		if r == '█' || r == '▌' || r == '■' {
			run.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()
	return out.String()
}

// truncateLabel shortens s to maxWidth display columns.
func truncateLabel(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}
