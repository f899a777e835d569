package state

import (
	"fmt"
	"sort"
	"sync"
)

// Transition is one edge of the machine: in From, Event moves to To.
type Transition struct {
	From  State
	Event Event
	To    State
}

type transitionKey struct {
	from  State
	event Event
}

// TransitionTable maps (state, event) pairs to target states. Missing pairs
// mean the event is ignored in that state.
type TransitionTable struct {
	mu        sync.RWMutex
	numStates int
	targets   map[transitionKey]State
}

// NewTransitionTable creates an empty table for states [0, numStates).
func NewTransitionTable(numStates int) *TransitionTable {
	return &TransitionTable{
		numStates: numStates,
		targets:   make(map[transitionKey]State),
	}
}

// Add registers a transition. A second registration for the same state and
// event is rejected with ErrDuplicateTransition, leaving the first in place.
func (t *TransitionTable) Add(from State, event Event, to State) error {
	if !t.inRange(from) {
		return fmt.Errorf("from state %d: %w", from, ErrStateOutOfRange)
	}
	if !t.inRange(to) {
		return fmt.Errorf("to state %d: %w", to, ErrStateOutOfRange)
	}
	if !event.valid() {
		return fmt.Errorf("%s: %w", event, ErrInvalidEvent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := transitionKey{from: from, event: event}
	if existing, ok := t.targets[key]; ok {
		return fmt.Errorf("state %d on %s already goes to %d: %w", from, event, existing, ErrDuplicateTransition)
	}

	t.targets[key] = to
	return nil
}

// Lookup returns the target for event in from, if one was registered.
func (t *TransitionTable) Lookup(from State, event Event) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	to, ok := t.targets[transitionKey{from: from, event: event}]
	return to, ok
}

// Len reports the number of registered transitions.
func (t *TransitionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.targets)
}

// Transitions returns every registered transition ordered by source state,
// event kind and input index.
func (t *TransitionTable) Transitions() []Transition {
	t.mu.RLock()
	out := make([]Transition, 0, len(t.targets))
	for key, to := range t.targets {
		out = append(out, Transition{From: key.from, Event: key.event, To: to})
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Event.Kind != b.Event.Kind {
			return a.Event.Kind < b.Event.Kind
		}
		return a.Event.Input < b.Event.Input
	})

	return out
}

func (t *TransitionTable) inRange(s State) bool {
	return s >= 0 && int(s) < t.numStates
}
