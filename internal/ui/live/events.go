package live

import "github.com/foundationallm/foundationallm-sub000/internal/harness"

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventRunStart signals the start of a run.
	EventRunStart EventKind = iota
	// EventCase delivers a case status update.
	EventCase
	// EventRunEnd signals run completion.
	EventRunEnd
)

// Event carries a UI update payload.
type Event struct {
	Kind    EventKind
	RunID   string
	Suite   string
	Agent   string
	Total   int
	Case    harness.Event
	Summary *harness.Summary
}
