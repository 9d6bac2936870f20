package live

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/foundationallm/foundationallm-sub000/internal/harness"
)

// Controller runs the live UI and implements harness.Observer.
type Controller struct {
	events  chan Event
	program *tea.Program
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// Start launches a live UI controller that writes to stdout.
func Start(stdout io.Writer, opts Options) *Controller {
	if stdout == nil {
		stdout = os.Stdout
	}
	events := make(chan Event, 256)
	model := NewModel(events, opts)
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	controller := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(controller.done)
	}()
	return controller
}

// Close signals the UI to stop.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// Wait blocks until the UI has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}

// OnRunStart forwards run start events to the UI.
func (c *Controller) OnRunStart(runID, suiteName, agent string, total int) {
	c.send(Event{Kind: EventRunStart, RunID: runID, Suite: suiteName, Agent: agent, Total: total})
}

// OnCaseEvent forwards case status updates to the UI.
func (c *Controller) OnCaseEvent(event harness.Event) {
	c.send(Event{Kind: EventCase, Case: event})
}

// OnRunEnd forwards the run summary to the UI and closes it.
func (c *Controller) OnRunEnd(results harness.Results) {
	summary := results.Summary
	c.send(Event{Kind: EventRunEnd, RunID: results.RunID, Summary: &summary})
	c.Close()
}

// send enqueues an event without blocking the caller. Events after Close
// are dropped.
func (c *Controller) send(event Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
	}
}
