package telemetry

// EventKind identifies one observable moment in a branch's lifecycle.
type EventKind string

const (
	EventActionCallStart  EventKind = "action_call_start"
	EventActionCallResult EventKind = "action_call_result"
	EventFinalResult      EventKind = "final_result"
)

// Event is one observability record. Events are ordered within a branch and
// never required for correctness.
type Event struct {
	BranchID string
	Depth    int
	Kind     EventKind
	Action   string
	Detail   string
}

// EventFunc receives the event stream of a run. A nil EventFunc disables
// event delivery.
type EventFunc func(Event)
