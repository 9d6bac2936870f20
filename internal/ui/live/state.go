package live

import (
	"time"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
)

// CaseRow holds UI state for a single test case.
type CaseRow struct {
	Index      int
	ID         string
	Text       string
	Status     harness.EventType
	StartedAt  time.Time
	FinishedAt time.Time
	Latency    time.Duration
	Tokens     int
	Error      string
}

// StatusCounts aggregates counts by status bucket.
type StatusCounts struct {
	Queued     int
	Running    int
	Validating int
	Done       int
	Passed     int
	Failed     int
	Errored    int
	Skipped    int
}

// State captures the live UI state for a harness run.
type State struct {
	RunID     string
	Suite     string
	Agent     string
	Total     int
	StartedAt time.Time
	LastEvent string
	Rows      []CaseRow
	Counts    StatusCounts
	Summary   *harness.Summary
}

// StartRun resets state for a new run and pre-populates queued rows.
func StartRun(runID, suiteName, agent string, total int, now time.Time) State {
	state := State{
		RunID:     runID,
		Suite:     suiteName,
		Agent:     agent,
		Total:     total,
		StartedAt: now,
	}
	if total > 0 {
		state.Rows = make([]CaseRow, total)
		for i := range state.Rows {
			state.Rows[i] = CaseRow{Index: i, Status: harness.EventQueued}
		}
	}
	state.Counts = recount(state.Rows)
	return state
}
