package state

import "time"

// Observer receives notifications from the polling loop. Implementations are
// called synchronously on the loop goroutine and must not block.
type Observer interface {
	EventSelected(ev Event, current State, matched bool)
	StateChanged(from, to State, cause Cause)
	TickCompleted(current State, elapsed time.Duration, overrun bool)
	CallbackFailed(phase Phase, s State)
	SnapshotFailed(err error)
}

type nopObserver struct{}

func (nopObserver) EventSelected(Event, State, bool) {}
func (nopObserver) StateChanged(State, State, Cause) {}
func (nopObserver) TickCompleted(State, time.Duration, bool) {}
func (nopObserver) CallbackFailed(Phase, State) {}
func (nopObserver) SnapshotFailed(error) {}
