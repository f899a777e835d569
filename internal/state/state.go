package state

import (
	"fmt"
	"time"
)

// MaxInputs is the number of digital inputs a machine can watch.
const MaxInputs = 4

// State identifies a machine state. Valid values are 0 through NumStates-1.
type State int

// EventKind tags the source of an Event.
type EventKind int

const (
	// EventNone means nothing happened this tick.
	EventNone EventKind = iota
	// EventPress is a debounced edge to the active level of an input.
	EventPress
	// EventRelease is a debounced edge back to the inactive level of an input.
	EventRelease
	// EventTimeout is emitted once when the machine timer expires.
	EventTimeout
)

// Event is produced and consumed within a single tick.
type Event struct {
	Kind  EventKind
	Input int
}

// NoEvent is the zero Event.
var NoEvent = Event{}

// Press returns the press event for the input at index.
func Press(index int) Event {
	return Event{Kind: EventPress, Input: index}
}

// Release returns the release event for the input at index.
func Release(index int) Event {
	return Event{Kind: EventRelease, Input: index}
}

// Timeout returns the timer expiry event.
func Timeout() Event {
	return Event{Kind: EventTimeout}
}

// IsNone reports whether e carries no event.
func (e Event) IsNone() bool {
	return e.Kind == EventNone
}

func (e Event) valid() bool {
	switch e.Kind {
	case EventPress, EventRelease:
		return e.Input >= 0 && e.Input < MaxInputs
	case EventTimeout:
		return e.Input == 0
	default:
		return false
	}
}

// String renders events as BTN<n>_PRESS, BTN<n>_RELEASE, TIMEOUT or NONE.
// Button numbers are 1-based.
func (e Event) String() string {
	switch e.Kind {
	case EventPress:
		return fmt.Sprintf("BTN%d_PRESS", e.Input+1)
	case EventRelease:
		return fmt.Sprintf("BTN%d_RELEASE", e.Input+1)
	case EventTimeout:
		return "TIMEOUT"
	case EventNone:
		return "NONE"
	default:
		return fmt.Sprintf("EVENT(%d,%d)", e.Kind, e.Input)
	}
}

// ParseEvent is the inverse of Event.String for valid events.
func ParseEvent(name string) (Event, error) {
	if name == "TIMEOUT" {
		return Timeout(), nil
	}

	var (
		button int
		edge   string
	)
	if _, err := fmt.Sscanf(name, "BTN%d_%s", &button, &edge); err != nil {
		return NoEvent, fmt.Errorf("%w: %q", ErrInvalidEvent, name)
	}

	var ev Event
	switch edge {
	case "PRESS":
		ev = Press(button - 1)
	case "RELEASE":
		ev = Release(button - 1)
	default:
		return NoEvent, fmt.Errorf("%w: %q", ErrInvalidEvent, name)
	}
	if !ev.valid() {
		return NoEvent, fmt.Errorf("%w: %q", ErrInvalidEvent, name)
	}

	return ev, nil
}

// Cause records why a state change happened.
type Cause string

const (
	// CauseStart is the entry into the initial state.
	CauseStart Cause = "start"
	// CauseTable is a transition selected from the transition table.
	CauseTable Cause = "table"
	// CauseForced is a transition requested by a do-action through GotoState.
	CauseForced Cause = "forced"
)

// Snapshot captures the machine position after a state change.
type Snapshot struct {
	MachineID string    `json:"machine_id"`
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	LastEvent string    `json:"last_event"`
	Cause     Cause     `json:"cause"`
	Tick      uint64    `json:"tick"`
	UpdatedAt time.Time `json:"updated_at"`
}
