package live

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the run header line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := "Run " + state.RunID
	if state.Suite != "" {
		line += " | Suite: " + state.Suite
	}
	if state.Agent != "" {
		line += " | Agent: " + state.Agent
	}
	if !state.StartedAt.IsZero() {
		line += " | Elapsed: " + formatDuration(now.Sub(state.StartedAt))
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderSummary renders the status counts line.
func renderSummary(state State, noColor bool) string {
	counts := state.Counts
	line := "Done: " + strconv.Itoa(counts.Done) + "/" + strconv.Itoa(max(state.Total, len(state.Rows))) +
		" Queued: " + strconv.Itoa(counts.Queued) +
		" Running: " + strconv.Itoa(counts.Running+counts.Validating) +
		" Passed: " + strconv.Itoa(counts.Passed) +
		" Failed: " + strconv.Itoa(counts.Failed) +
		" Error: " + strconv.Itoa(counts.Errored) +
		" Skipped: " + strconv.Itoa(counts.Skipped)
	return stylize(line, noColor, lipgloss.Color("242"))
}

// renderFooter renders the final summary or the last event line.
func renderFooter(state State, noColor bool) string {
	if state.Summary != nil {
		line := "Finished: pass rate " + formatPassRate(state.Summary.PassRate) +
			" (" + strconv.Itoa(state.Summary.Passed) + "/" + strconv.Itoa(state.Summary.Total-state.Summary.Skipped) + ")"
		return stylize(line, noColor, lipgloss.Color("42"))
	}
	if state.LastEvent == "" {
		return ""
	}
	return stylize("Last event: "+state.LastEvent, noColor, lipgloss.Color("244"))
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
