package engine

import (
	"log/slog"
	"sync"
	"time"
)

type EventKind string

const (
	EventWorkflowCreated      EventKind = "workflow.created"
	EventWorkflowTransitioned EventKind = "workflow.transitioned"
	EventWorkflowCancelled    EventKind = "workflow.cancelled"
	EventInterviewScheduled   EventKind = "interview.scheduled"
	EventInterviewCancelled   EventKind = "interview.cancelled"
)

// Event is what the engine tells the outside world. State changes never call
// into delivery directly; the orchestration facade subscribes here, which
// keeps the state machine pure and testable on its own.
type Event struct {
	Kind        EventKind
	WorkflowID  int64
	CandidateID string
	JobID       string
	FromState   string
	ToState     string
	Trigger     string
	Actor       string
	InterviewID int64
	Occurred    time.Time
	Context     map[string]string
}

// mergeContext overlays event-specific keys on the workflow's base metadata.
// Event keys win on collision.
func mergeContext(base, event map[string]string) map[string]string {
	if len(base) == 0 {
		return event
	}
	out := make(map[string]string, len(base)+len(event))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range event {
		out[k] = v
	}
	return out
}

// Emitter fans events out to subscribers. Emit never blocks the state
// machine: a subscriber that cannot keep up loses events and a warning is
// logged, the same way the manager wakeup channel drops duplicate pokes.
type Emitter struct {
	mu   sync.RWMutex
	subs []chan Event
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe returns a buffered channel of future events.
func (e *Emitter) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("Dropping event, subscriber buffer full", "kind", ev.Kind, "workflow_id", ev.WorkflowID)
		}
	}
}

// Close closes all subscriber channels. Emit must not be called afterwards.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		close(ch)
	}
	e.subs = nil
}
