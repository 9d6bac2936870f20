package live

import (
	"fmt"
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
)

// Reduce applies a case event to the UI state.
func Reduce(state State, event harness.Event) State {
	state = ensureRow(state, event)
	state = applyCaseEvent(state, event)
	state.Counts = recount(state.Rows)
	if message := formatLastEvent(event); message != "" {
		state.LastEvent = message
	}
	return state
}

// ensureRow grows the state rows to include the target index.
func ensureRow(state State, event harness.Event) State {
	if event.Index < 0 || event.Index < len(state.Rows) {
		return state
	}
	rows := make([]CaseRow, event.Index+1)
	copy(rows, state.Rows)
	for i := len(state.Rows); i < len(rows); i++ {
		rows[i] = CaseRow{Index: i, Status: harness.EventQueued}
	}
	state.Rows = rows
	return state
}

// applyCaseEvent updates a row with the given event.
func applyCaseEvent(state State, event harness.Event) State {
	if event.Index < 0 || event.Index >= len(state.Rows) {
		return state
	}
	row := state.Rows[event.Index]
	if row.ID == "" {
		row.ID = event.CaseID
	}
	if row.Text == "" {
		row.Text = event.Question
	}
	// A late running event must not resurrect a finished row.
	if isTerminalStatus(row.Status) && !isTerminalStatus(event.Type) {
		state.Rows[event.Index] = row
		return state
	}
	row.Status = event.Type
	if event.Type == harness.EventRunning && row.StartedAt.IsZero() {
		row.StartedAt = event.EmittedAt
	}
	if isTerminalStatus(event.Type) {
		if !event.EmittedAt.IsZero() {
			row.FinishedAt = event.EmittedAt
		}
		row.Latency = event.Latency
		row.Tokens = event.Tokens
		row.Error = event.Error
	}
	state.Rows[event.Index] = row
	return state
}

// isTerminalStatus reports whether a status is final.
func isTerminalStatus(status harness.EventType) bool {
	switch status {
	case harness.EventPassed,
		harness.EventFailed,
		harness.EventError,
		harness.EventSkipped:
		return true
	default:
		return false
	}
}

// recount recomputes status counts for the current rows.
func recount(rows []CaseRow) StatusCounts {
	var counts StatusCounts
	for _, row := range rows {
		switch row.Status {
		case harness.EventQueued:
			counts.Queued++
		case harness.EventRunning:
			counts.Running++
		case harness.EventValidating:
			counts.Validating++
		case harness.EventPassed:
			counts.Done++
			counts.Passed++
		case harness.EventFailed:
			counts.Done++
			counts.Failed++
		case harness.EventError:
			counts.Done++
			counts.Errored++
		case harness.EventSkipped:
			counts.Done++
			counts.Skipped++
		}
	}
	return counts
}

// formatLastEvent creates a short footer message for the event.
func formatLastEvent(event harness.Event) string {
	label := formatIndex(event.Index)
	if event.CaseID != "" {
		label = event.CaseID
	}
	switch event.Type {
	case harness.EventPassed:
		return fmt.Sprintf("%s passed (%s)", label, formatDuration(event.Latency))
	case harness.EventFailed:
		if event.Error != "" {
			return fmt.Sprintf("%s failed: %s", label, event.Error)
		}
		return fmt.Sprintf("%s failed", label)
	case harness.EventError:
		return fmt.Sprintf("%s error: %s", label, event.Error)
	case harness.EventSkipped:
		return fmt.Sprintf("%s skipped", label)
	}
	return ""
}

// formatDuration renders a rounded duration for display.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(100 * time.Millisecond).String()
}
