package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const snapshotTimeout = 250 * time.Millisecond

// DefaultTickInterval is the loop period used when none is configured.
const DefaultTickInterval = 100 * time.Millisecond

// Machine is a single-loop polling state machine. Timer and inputs are
// sampled once per tick, at most one event is dispatched through the
// transition table, and the do-action of the current state runs every tick.
//
// All methods except CurrentState, Tick, RunID, Running, Debug, SetDebug and
// Describe must be called from the goroutine that drives the loop.
type Machine struct {
	numStates int
	initial   State
	table     *TransitionTable
	inputs    []*InputMonitor
	timer     *Timer
	callbacks Callbacks

	log       *slog.Logger
	clock     Clock
	observer  Observer
	storage   Storage
	machineID string
	runID     string

	current atomic.Int64
	tick    atomic.Uint64
	debug   atomic.Bool
	running atomic.Bool

	started      bool
	inDo         bool
	inTransition bool
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithInitialState sets the state entered by Start. Defaults to 0.
func WithInitialState(s State) Option {
	return func(m *Machine) {
		m.initial = s
	}
}

// WithDebug enables reporting of every selected event and state change at
// info level.
func WithDebug(enabled bool) Option {
	return func(m *Machine) {
		m.debug.Store(enabled)
	}
}

// WithLogger sets the logger for the machine.
func WithLogger(log *slog.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock sets the clock used to timestamp snapshots.
func WithClock(clock Clock) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithObserver registers an observer for loop notifications.
func WithObserver(observer Observer) Option {
	return func(m *Machine) {
		if observer != nil {
			m.observer = observer
		}
	}
}

// WithStorage persists a Snapshot under machineID after every state change.
func WithStorage(storage Storage, machineID string) Option {
	return func(m *Machine) {
		m.storage = storage
		m.machineID = machineID
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(m *Machine) {
		m.runID = id
	}
}

// InputOption configures a registered input.
type InputOption func(*inputConfig)

type inputConfig struct {
	samples int
}

// WithDebounceSamples sets how many consecutive samples must agree before a
// level change is accepted.
func WithDebounceSamples(n int) InputOption {
	return func(c *inputConfig) {
		c.samples = n
	}
}

// NewMachine creates a machine with states [0, numStates) driven by callbacks.
func NewMachine(numStates int, callbacks Callbacks, opts ...Option) (*Machine, error) {
	if numStates < 1 {
		return nil, configErr("new machine", ErrInvalidStateCount)
	}
	if callbacks == nil {
		return nil, configErr("new machine", ErrNilCallbacks)
	}

	m := &Machine{
		numStates: numStates,
		table:     NewTransitionTable(numStates),
		callbacks: callbacks,
		log:       slog.Default(),
		clock:     SystemClock{},
		observer:  nopObserver{},
	}

	for _, opt := range opts {
		opt(m)
	}

	if !m.inRange(m.initial) {
		return nil, configErr("new machine", fmt.Errorf("initial state %d: %w", m.initial, ErrStateOutOfRange))
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}

	m.current.Store(int64(m.initial))
	m.log = m.log.With(slog.String("run_id", m.runID))

	return m, nil
}

// RegisterInput watches reader and returns its input index. Indexes follow
// registration order.
func (m *Machine) RegisterInput(reader DigitalReader, lowActive bool, opts ...InputOption) (int, error) {
	if m.started {
		return -1, configErr("register input", ErrMachineRunning)
	}
	if len(m.inputs) >= MaxInputs {
		return -1, configErr("register input", fmt.Errorf("at most %d: %w", MaxInputs, ErrTooManyInputs))
	}

	cfg := inputConfig{samples: DefaultDebounceSamples}
	for _, opt := range opts {
		opt(&cfg)
	}

	index := len(m.inputs)
	monitor, err := NewInputMonitor(reader, index, lowActive, cfg.samples)
	if err != nil {
		return -1, configErr("register input", err)
	}

	m.inputs = append(m.inputs, monitor)
	m.log.Debug("input registered", "index", index, "low_active", lowActive, "debounce_samples", cfg.samples)

	return index, nil
}

// SetTimer attaches the timer whose expiry produces the Timeout event.
func (m *Machine) SetTimer(t *Timer) error {
	if m.started {
		return configErr("set timer", ErrMachineRunning)
	}
	if t == nil {
		return configErr("set timer", errors.New("timer is nil"))
	}
	if m.timer != nil {
		return configErr("set timer", ErrTimerAlreadySet)
	}

	m.timer = t
	return nil
}

// Timer returns the attached timer, or nil.
func (m *Machine) Timer() *Timer {
	return m.timer
}

// AddTransition registers a table transition. It may be called at any time;
// the table is consulted fresh on every tick.
func (m *Machine) AddTransition(from State, event Event, to State) error {
	if err := m.table.Add(from, event, to); err != nil {
		return configErr("add transition", err)
	}
	return nil
}

// Lookup reports the table target for event in from.
func (m *Machine) Lookup(from State, event Event) (State, bool) {
	return m.table.Lookup(from, event)
}

// GotoState forces a change to target from inside a do-action. Exit and
// entry actions run before GotoState returns to the do-action; the new state
// gets its first do-action on the next tick.
func (m *Machine) GotoState(ctx context.Context, target State) error {
	if m.inTransition {
		return ErrForcedDuringTransition
	}
	if !m.inDo {
		return ErrForcedOutsideDo
	}
	if !m.inRange(target) {
		return fmt.Errorf("goto state %d: %w", target, ErrStateOutOfRange)
	}

	m.report(ctx, "forcing state change", "from", m.CurrentState(), "to", target)

	return m.changeState(ctx, target, NoEvent, CauseForced)
}

// Start enters the initial state.
func (m *Machine) Start(ctx context.Context) error {
	if m.started {
		return ErrMachineRunning
	}
	m.started = true
	m.running.Store(true)

	initial := m.CurrentState()
	m.log.Info("state machine started",
		slog.Int("states", m.numStates),
		slog.Int("initial", int(initial)),
		slog.Int("inputs", len(m.inputs)),
		slog.Bool("timer", m.timer != nil),
		slog.Int("transitions", m.table.Len()),
	)

	err := m.transitionAction(func() error {
		return m.callbacks.EntryAction(ctx, initial)
	})
	if err != nil {
		m.running.Store(false)
		return m.callbackFailed(PhaseEntry, initial, NoEvent, err)
	}

	m.observer.StateChanged(initial, initial, CauseStart)
	m.saveSnapshot(ctx, NoEvent, CauseStart)

	return nil
}

// Step runs one tick without the trailing sleep.
func (m *Machine) Step(ctx context.Context) error {
	_, err := m.step(ctx, 0)
	return err
}

// Run enters the initial state and polls every tick until ctx is cancelled.
// On cancellation the exit action of the current state runs once and Run
// returns nil. A callback error stops the loop and is returned as a
// *CallbackError.
func (m *Machine) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		return configErr("run", fmt.Errorf("%s: %w", tick, ErrInvalidTickInterval))
	}
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.running.Store(false)

	sleep := time.NewTimer(tick)
	defer sleep.Stop()

	for {
		if ctx.Err() != nil {
			return m.stop(ctx)
		}

		elapsed, err := m.step(ctx, tick)
		if err != nil {
			m.log.Error("state machine stopped on callback error", slog.Any("error", err))
			return err
		}

		wait := tick - elapsed
		if wait <= 0 {
			continue
		}

		sleep.Reset(wait)
		select {
		case <-ctx.Done():
			return m.stop(ctx)
		case <-sleep.C:
		}
	}
}

// CurrentState returns the current state. Safe for concurrent use.
func (m *Machine) CurrentState() State {
	return State(m.current.Load())
}

// Tick returns the number of completed or in-flight ticks.
func (m *Machine) Tick() uint64 {
	return m.tick.Load()
}

// Running reports whether the loop has started and not yet stopped.
func (m *Machine) Running() bool {
	return m.running.Load()
}

// RunID identifies this machine instance in logs and snapshots.
func (m *Machine) RunID() string {
	return m.runID
}

// NumStates returns N.
func (m *Machine) NumStates() int {
	return m.numStates
}

// InputCount returns the number of registered inputs.
func (m *Machine) InputCount() int {
	return len(m.inputs)
}

// Debug reports whether debug reporting is enabled.
func (m *Machine) Debug() bool {
	return m.debug.Load()
}

// SetDebug toggles debug reporting. Safe for concurrent use.
func (m *Machine) SetDebug(enabled bool) {
	m.debug.Store(enabled)
}

func (m *Machine) step(ctx context.Context, interval time.Duration) (time.Duration, error) {
	if !m.started {
		return 0, ErrNotStarted
	}

	began := time.Now()
	m.tick.Add(1)

	ev := m.selectEvent()
	if !ev.IsNone() {
		current := m.CurrentState()
		to, ok := m.table.Lookup(current, ev)
		m.observer.EventSelected(ev, current, ok)

		if !ok {
			m.report(ctx, "ignoring event", "event", ev.String(), "state", current)
		} else {
			m.report(ctx, "processing event", "event", ev.String(), "from", current, "to", to)
			if err := m.changeState(ctx, to, ev, CauseTable); err != nil {
				return time.Since(began), err
			}
		}
	}

	current := m.CurrentState()
	err := m.doAction(ctx, current)

	elapsed := time.Since(began)
	if err != nil {
		return elapsed, m.callbackFailed(PhaseDo, current, ev, err)
	}

	overrun := interval > 0 && elapsed > interval
	if overrun {
		m.log.Debug("tick overran interval", slog.Duration("elapsed", elapsed), slog.Duration("interval", interval))
	}
	m.observer.TickCompleted(m.CurrentState(), elapsed, overrun)

	return elapsed, nil
}

// doAction runs the do-action of s. GotoState is allowed only while it runs.
func (m *Machine) doAction(ctx context.Context, s State) error {
	m.inDo = true
	defer func() { m.inDo = false }()

	return m.callbacks.DoAction(ctx, s)
}

// selectEvent samples the timer, then every input in registration order. The
// first event wins; edges found after it are deferred to the next tick.
func (m *Machine) selectEvent() Event {
	selected := NoEvent
	if m.timer != nil && m.timer.Poll() {
		selected = Timeout()
	}

	for _, input := range m.inputs {
		ev, ok := input.Sample()
		if !ok {
			continue
		}
		if selected.IsNone() {
			selected = ev
			continue
		}

		input.deferEdge()
		m.log.Debug("concurrent event dropped", "event", ev.String(), "selected", selected.String())
	}

	return selected
}

func (m *Machine) changeState(ctx context.Context, to State, ev Event, cause Cause) error {
	from := m.CurrentState()

	m.inTransition = true
	defer func() { m.inTransition = false }()

	if err := m.callbacks.ExitAction(ctx, from); err != nil {
		return m.callbackFailed(PhaseExit, from, ev, err)
	}

	m.current.Store(int64(to))
	m.report(ctx, "state changed", "from", from, "to", to, "cause", string(cause))
	m.observer.StateChanged(from, to, cause)

	if err := m.callbacks.EntryAction(ctx, to); err != nil {
		return m.callbackFailed(PhaseEntry, to, ev, err)
	}

	m.saveSnapshot(ctx, ev, cause)
	return nil
}

func (m *Machine) stop(ctx context.Context) error {
	current := m.CurrentState()
	m.log.Info("state machine stopping", slog.Int("state", int(current)), slog.Uint64("ticks", m.Tick()))

	err := m.transitionAction(func() error {
		return m.callbacks.ExitAction(context.WithoutCancel(ctx), current)
	})
	if err != nil {
		return m.callbackFailed(PhaseExit, current, NoEvent, err)
	}

	return nil
}

// transitionAction runs an entry or exit action outside changeState with
// GotoState locked out.
func (m *Machine) transitionAction(fn func() error) error {
	m.inTransition = true
	defer func() { m.inTransition = false }()

	return fn()
}

func (m *Machine) callbackFailed(phase Phase, s State, ev Event, err error) error {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return err
	}

	m.observer.CallbackFailed(phase, s)
	return &CallbackError{Phase: phase, State: s, Event: ev, Err: err}
}

func (m *Machine) saveSnapshot(ctx context.Context, ev Event, cause Cause) {
	if m.storage == nil {
		return
	}

	snap := &Snapshot{
		MachineID: m.machineID,
		RunID:     m.runID,
		State:     m.CurrentState(),
		LastEvent: ev.String(),
		Cause:     cause,
		Tick:      m.Tick(),
		UpdatedAt: m.clock.Now().UTC(),
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()

	if err := m.storage.SaveSnapshot(saveCtx, snap); err != nil {
		m.log.Warn("failed to save state snapshot", "machine_id", m.machineID, "state", snap.State, "error", err)
		m.observer.SnapshotFailed(err)
	}
}

// report logs loop activity at info level in debug mode and at debug level
// otherwise.
func (m *Machine) report(ctx context.Context, msg string, args ...any) {
	level := slog.LevelDebug
	if m.debug.Load() {
		level = slog.LevelInfo
	}
	m.log.Log(ctx, level, msg, args...)
}

func (m *Machine) inRange(s State) bool {
	return s >= 0 && int(s) < m.numStates
}
