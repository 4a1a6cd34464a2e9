package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/willibrandon/studio/internal/db/models"
)

func limit(n int64) *int64 { return &n }

func TestBucketChartEmpty(t *testing.T) {
	chart := NewBucketChart()
	assert.Contains(t, chart.View(), "No bucket has a file size limit")

	chart.SetBuckets([]models.Bucket{{ID: "a", Name: "a"}})
	assert.Contains(t, chart.View(), "No bucket has a file size limit")
}

func TestBucketChartRendersLabelsAndSizes(t *testing.T) {
	chart := NewBucketChart()
	chart.SetBuckets([]models.Bucket{
		{ID: "avatars", Name: "avatars", FileSizeLimit: limit(50 << 20)},
		{ID: "docs", Name: "docs", FileSizeLimit: limit(1 << 20)},
		{ID: "open", Name: "open"},
	})
	chart.SetLimit(limit(10 << 20))

	out := chart.View()
	assert.Contains(t, out, "avatars")
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "50 MiB")
	assert.Contains(t, out, "1.0 MiB")
	assert.NotContains(t, out, "open")
	assert.Contains(t, out, "█")
}

func TestBucketChartSetSizeMinimum(t *testing.T) {
	chart := NewBucketChart()
	chart.SetSize(10)
	assert.Equal(t, 80, chart.width)
	chart.SetSize(120)
	assert.Equal(t, 120, chart.width)
}

func TestTruncateLabel(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long label", 10, "this is..."},
		{"ab", 3, "ab"},
		{"abcd", 3, "abc"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, truncateLabel(tc.input, tc.maxLen), "truncateLabel(%q, %d)", tc.input, tc.maxLen)
	}
}

func TestColorBarsKeepsText(t *testing.T) {
	out := colorBars("docs ███", lipgloss.NewStyle())
	assert.True(t, strings.HasPrefix(out, "docs "))
	assert.Contains(t, out, "███")
}
