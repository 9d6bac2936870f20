package harness

import "time"

// EventType identifies a case status update for observers.
type EventType string

const (
	// EventQueued marks a case known but not yet started.
	EventQueued EventType = "queued"
	// EventRunning marks an in-flight completion call.
	EventRunning EventType = "running"
	// EventValidating marks validation of the returned answer.
	EventValidating EventType = "validating"
	// EventPassed marks a case whose answer passed validation.
	EventPassed EventType = "passed"
	// EventFailed marks a case whose answer failed validation.
	EventFailed EventType = "failed"
	// EventError marks a case that could not be evaluated.
	EventError EventType = "error"
	// EventSkipped marks a case not run because the run was cancelled.
	EventSkipped EventType = "skipped"
)

// Event carries a single status update for a case.
type Event struct {
	Index     int
	CaseID    string
	Question  string
	Type      EventType
	Latency   time.Duration
	Tokens    int
	Error     string
	EmittedAt time.Time
}

// Observer receives run lifecycle events for UI or logging. Case events
// arrive from worker goroutines.
type Observer interface {
	OnRunStart(runID, suiteName, agent string, total int)
	OnCaseEvent(event Event)
	OnRunEnd(results Results)
}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnRunStart(runID, suiteName, agent string, total int) {
	for _, observer := range m {
		if observer != nil {
			observer.OnRunStart(runID, suiteName, agent, total)
		}
	}
}

func (m MultiObserver) OnCaseEvent(event Event) {
	for _, observer := range m {
		if observer != nil {
			observer.OnCaseEvent(event)
		}
	}
}

func (m MultiObserver) OnRunEnd(results Results) {
	for _, observer := range m {
		if observer != nil {
			observer.OnRunEnd(results)
		}
	}
}

func eventForStatus(status Status) EventType {
	switch status {
	case StatusPassed:
		return EventPassed
	case StatusFailed:
		return EventFailed
	case StatusSkipped:
		return EventSkipped
	default:
		return EventError
	}
}
