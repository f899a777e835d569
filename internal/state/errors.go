package state

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStateCount indicates a machine built with fewer than one state.
	ErrInvalidStateCount = errors.New("number of states must be positive")
	// ErrStateOutOfRange indicates a state id outside [0, NumStates).
	ErrStateOutOfRange = errors.New("state out of range")
	// ErrNilCallbacks indicates a machine built without callbacks.
	ErrNilCallbacks = errors.New("callbacks are required")
	// ErrTooManyInputs indicates more than MaxInputs registered inputs.
	ErrTooManyInputs = errors.New("too many inputs")
	// ErrInvalidEvent indicates an event that cannot appear in a transition.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrDuplicateTransition indicates a second target for the same state and event.
	ErrDuplicateTransition = errors.New("duplicate transition")
	// ErrTimerAlreadySet indicates a second call to SetTimer.
	ErrTimerAlreadySet = errors.New("timer already set")
	// ErrInvalidTickInterval indicates a non-positive tick interval.
	ErrInvalidTickInterval = errors.New("tick interval must be positive")
	// ErrInvalidDebounce indicates a debounce window below one sample.
	ErrInvalidDebounce = errors.New("debounce samples must be at least 1")
	// ErrMachineRunning indicates setup attempted after the loop started.
	ErrMachineRunning = errors.New("machine already running")
	// ErrNilReader indicates an input registered without a level reader.
	ErrNilReader = errors.New("input reader is required")

	// ErrNotStarted indicates Step called before Start.
	ErrNotStarted = errors.New("machine not started")
	// ErrForcedOutsideDo indicates GotoState called outside a do-action.
	ErrForcedOutsideDo = errors.New("forced transition outside do-action")
	// ErrForcedDuringTransition indicates GotoState called from an entry or exit action.
	ErrForcedDuringTransition = errors.New("forced transition during entry or exit action")
)

// ConfigError is returned by setup operations for malformed configuration.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("fsm config: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(op string, err error) error {
	return &ConfigError{Op: op, Err: err}
}

// Phase names the callback that failed.
type Phase string

const (
	PhaseEntry Phase = "entry"
	PhaseExit  Phase = "exit"
	PhaseDo    Phase = "do"
)

// CallbackError wraps an error returned by a user callback together with the
// machine position at the time of the failure.
type CallbackError struct {
	Phase Phase
	State State
	Event Event
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s action failed in state %d (event %s): %v", e.Phase, e.State, e.Event, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
