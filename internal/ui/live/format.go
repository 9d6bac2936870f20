package live

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
)

// formatCaseID returns the display id for a case row.
func formatCaseID(row CaseRow) string {
	if row.ID != "" {
		return row.ID
	}
	return formatIndex(row.Index)
}

// formatIndex formats a case index.
func formatIndex(index int) string {
	value := strconv.Itoa(index + 1)
	if len(value) < 2 {
		value = "0" + value
	}
	return "#" + value
}

// formatQuestionText truncates question text for display.
func formatQuestionText(text string, limit int) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if limit <= 3 || len(normalized) <= limit {
		return normalized
	}
	return normalized[:limit-3] + "..."
}

// formatStatus renders a status label for a row.
func formatStatus(row CaseRow, noColor bool) string {
	label := string(row.Status)
	if row.Status == "" {
		label = string(harness.EventQueued)
	}
	if noColor {
		return label
	}
	return statusStyle(row.Status).Render(label)
}

// formatRowDuration returns elapsed or total time for a row.
func formatRowDuration(row CaseRow, now time.Time) string {
	if row.Latency > 0 {
		return formatDuration(row.Latency)
	}
	if !row.FinishedAt.IsZero() && !row.StartedAt.IsZero() {
		return formatDuration(row.FinishedAt.Sub(row.StartedAt))
	}
	if !row.StartedAt.IsZero() {
		return formatDuration(now.Sub(row.StartedAt))
	}
	return ""
}

// formatTokens formats token counts for display.
func formatTokens(tokens int) string {
	if tokens <= 0 {
		return "n/a"
	}
	return strconv.Itoa(tokens)
}

// formatPassRate renders a 0..1 ratio as a percentage.
func formatPassRate(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 1, 64) + "%"
}

// statusStyle selects a style for a given status.
func statusStyle(status harness.EventType) lipgloss.Style {
	color := lipgloss.Color("244")
	switch status {
	case harness.EventPassed:
		color = lipgloss.Color("42")
	case harness.EventFailed:
		color = lipgloss.Color("220")
	case harness.EventError:
		color = lipgloss.Color("196")
	case harness.EventRunning:
		color = lipgloss.Color("33")
	case harness.EventValidating:
		color = lipgloss.Color("201")
	case harness.EventQueued, harness.EventSkipped:
		color = lipgloss.Color("246")
	}
	return lipgloss.NewStyle().Foreground(color)
}
