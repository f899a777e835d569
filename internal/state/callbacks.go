package state

import "context"

// Callbacks is implemented by the controller driving the machine. Every call
// blocks the polling loop until it returns.
type Callbacks interface {
	// EntryAction runs after the machine has moved into s.
	EntryAction(ctx context.Context, s State) error
	// ExitAction runs before the machine leaves s.
	ExitAction(ctx context.Context, s State) error
	// DoAction runs once per tick for the current state, after any
	// transition of that tick. It may call Machine.GotoState.
	DoAction(ctx context.Context, s State) error
}

// Action is a single callback bound to a state.
type Action func(ctx context.Context, s State) error

// Handlers groups the actions of one state. Nil actions are skipped.
type Handlers struct {
	Entry Action
	Exit  Action
	Do    Action
}

// HandlerTable dispatches callbacks to per-state Handlers indexed by state id.
// States beyond the end of the table have no actions.
type HandlerTable []Handlers

var _ Callbacks = HandlerTable(nil)

// EntryAction implements Callbacks.
func (h HandlerTable) EntryAction(ctx context.Context, s State) error {
	return h.lookup(s).Entry.run(ctx, s)
}

// ExitAction implements Callbacks.
func (h HandlerTable) ExitAction(ctx context.Context, s State) error {
	return h.lookup(s).Exit.run(ctx, s)
}

// DoAction implements Callbacks.
func (h HandlerTable) DoAction(ctx context.Context, s State) error {
	return h.lookup(s).Do.run(ctx, s)
}

func (h HandlerTable) lookup(s State) Handlers {
	if s < 0 || int(s) >= len(h) {
		return Handlers{}
	}
	return h[s]
}

func (a Action) run(ctx context.Context, s State) error {
	if a == nil {
		return nil
	}
	return a(ctx, s)
}
