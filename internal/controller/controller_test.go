package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/signalctl/internal/errors"
	"github.com/Proton-105/signalctl/internal/hw"
	"github.com/Proton-105/signalctl/internal/state"
)

const (
	buttonPin hw.Pin = 15
	motionPin hw.Pin = 14
)

var pins = map[string]hw.Pin{
	"car red":    6,
	"car yellow": 7,
	"car green":  8,
	"walk":       9,
	"dont walk":  10,
}

var testConfig = Config{
	YellowHold: 2 * time.Second,
	AllRedHold: time.Second,
	WalkHold:   5 * time.Second,
	ClearHold:  3 * time.Second,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingHold returns immediately and remembers every requested duration.
type recordingHold struct {
	holds []time.Duration
	err   error
}

func (h *recordingHold) hold(_ context.Context, d time.Duration) error {
	h.holds = append(h.holds, d)
	return h.err
}

type crossing struct {
	driver  *hw.SimDriver
	display *hw.TextDisplay
	machine *state.Machine
	ctrl    *Controller
	hold    *recordingHold
}

func newCrossing(t *testing.T, driver hw.Driver, cfg Config, opts ...Option) *crossing {
	t.Helper()

	sim, _ := driver.(*hw.SimDriver)
	log := testLogger()

	light := func(name string) hw.Light {
		l, err := hw.NewDigitalLight(driver, pins[name], name, log)
		require.NoError(t, err)
		return l
	}
	lights := Lights{
		CarRed:    light("car red"),
		CarYellow: light("car yellow"),
		CarGreen:  light("car green"),
		Walk:      light("walk"),
		DontWalk:  light("dont walk"),
	}

	display := hw.NewTextDisplay(0, 0, log)
	hold := &recordingHold{}
	ctrl, err := New(lights, display, cfg, append([]Option{WithHold(hold.hold), WithLogger(log)}, opts...)...)
	require.NoError(t, err)

	m, err := state.NewMachine(NumStates, ctrl.Handlers(), state.WithLogger(log))
	require.NoError(t, err)

	button, err := hw.NewInputPin(driver, buttonPin, "button", true)
	require.NoError(t, err)
	index, err := m.RegisterInput(button, true, state.WithDebounceSamples(1))
	require.NoError(t, err)
	require.NoError(t, ctrl.Install(m, index))

	return &crossing{driver: sim, display: display, machine: m, ctrl: ctrl, hold: hold}
}

func (c *crossing) lit(name string) bool {
	return c.driver.Read(pins[name])
}

func (c *crossing) press(t *testing.T, ctx context.Context) {
	t.Helper()

	c.driver.Set(buttonPin, false)
	require.NoError(t, c.machine.Step(ctx))
	c.driver.Set(buttonPin, true)
}

func TestController_PedestrianCycle(t *testing.T) {
	ctx := context.Background()
	c := newCrossing(t, hw.NewSimDriver(testLogger()), testConfig)

	require.NoError(t, c.machine.Start(ctx))
	assert.Equal(t, CarsGo, c.machine.CurrentState())
	assert.True(t, c.lit("car green"))
	assert.True(t, c.lit("dont walk"))
	assert.False(t, c.lit("walk"))
	assert.Equal(t, "Don't Walk", c.display.Line(0))

	// idle ticks keep the car phase
	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, CarsGo, c.machine.CurrentState())

	c.press(t, ctx)
	assert.Equal(t, WalkGo, c.machine.CurrentState(), "press enters cars_slow, whose first do-action forces walk_go")
	assert.True(t, c.lit("car red"))
	assert.False(t, c.lit("car yellow"))
	assert.False(t, c.lit("car green"))
	assert.Equal(t, []time.Duration{testConfig.YellowHold}, c.hold.holds)

	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, WalkClear, c.machine.CurrentState())
	assert.False(t, c.lit("walk"), "walk ends on entering walk_clear")
	assert.True(t, c.lit("dont walk"))

	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, CarsGo, c.machine.CurrentState())
	assert.True(t, c.lit("car green"))
	assert.False(t, c.lit("car red"))

	assert.Equal(t, []time.Duration{
		testConfig.YellowHold,
		testConfig.AllRedHold,
		testConfig.WalkHold,
		testConfig.ClearHold,
	}, c.hold.holds)
}

func TestController_CarSignalLightsOneLamp(t *testing.T) {
	ctx := context.Background()

	var c *crossing
	lit := map[time.Duration][]string{}
	hold := func(_ context.Context, d time.Duration) error {
		for _, name := range []string{"car green", "car yellow", "car red"} {
			if c.lit(name) {
				lit[d] = append(lit[d], name)
			}
		}
		return nil
	}
	c = newCrossing(t, hw.NewSimDriver(testLogger()), testConfig, WithHold(hold))

	require.NoError(t, c.machine.Start(ctx))
	c.press(t, ctx)
	require.NoError(t, c.machine.Step(ctx))

	assert.Equal(t, []string{"car yellow"}, lit[testConfig.YellowHold])
	assert.Equal(t, []string{"car red"}, lit[testConfig.AllRedHold])
	assert.Equal(t, []string{"car red"}, lit[testConfig.WalkHold])
}

func TestController_WalkShowsWalkDuringHold(t *testing.T) {
	ctx := context.Background()
	c := newCrossing(t, hw.NewSimDriver(testLogger()), testConfig)

	var walkLit []bool
	var text []string
	c.ctrl.hold = func(_ context.Context, d time.Duration) error {
		if d == testConfig.WalkHold {
			walkLit = append(walkLit, c.lit("walk"), c.lit("dont walk"))
			text = append(text, c.display.Line(0))
		}
		return nil
	}

	require.NoError(t, c.machine.Start(ctx))
	c.press(t, ctx)
	require.NoError(t, c.machine.Step(ctx))

	assert.Equal(t, []bool{true, false}, walkLit)
	assert.Equal(t, []string{"Walk"}, text)
}

func TestController_MotionEndsCarPhase(t *testing.T) {
	ctx := context.Background()
	driver := hw.NewSimDriver(testLogger())

	sensor, err := hw.NewDigitalSensor(driver, motionPin, "pir", false, testLogger())
	require.NoError(t, err)

	c := newCrossing(t, driver, testConfig, WithMotionSensor(sensor))
	require.NoError(t, c.machine.Start(ctx))

	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, CarsGo, c.machine.CurrentState())

	driver.Set(motionPin, true)
	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, CarsSlow, c.machine.CurrentState())
	assert.True(t, c.lit("car yellow"))
	assert.Empty(t, c.hold.holds, "the new state's do-action waits for the next tick")
}

func TestController_GreenTimeout(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := testConfig
	cfg.GreenTimeout = 30 * time.Second

	c := newCrossing(t, hw.NewSimDriver(testLogger()), cfg, WithClock(clock))
	timer := c.machine.Timer()
	require.NotNil(t, timer)

	to, ok := c.machine.Lookup(CarsGo, state.Timeout())
	require.True(t, ok)
	assert.Equal(t, CarsSlow, to)

	require.NoError(t, c.machine.Start(ctx))
	assert.True(t, timer.Armed())
	assert.Equal(t, 30*time.Second, timer.Remaining())

	clock.Advance(29 * time.Second)
	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, CarsGo, c.machine.CurrentState())

	clock.Advance(time.Second)
	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, WalkGo, c.machine.CurrentState())
	assert.False(t, timer.Armed())
}

func TestController_PressCancelsGreenTimer(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := testConfig
	cfg.GreenTimeout = time.Minute

	c := newCrossing(t, hw.NewSimDriver(testLogger()), cfg, WithClock(clock))
	require.NoError(t, c.machine.Start(ctx))

	c.press(t, ctx)
	assert.False(t, c.machine.Timer().Armed(), "leaving cars_go cancels the timer")
}

func TestController_NoTimerWithoutGreenTimeout(t *testing.T) {
	c := newCrossing(t, hw.NewSimDriver(testLogger()), testConfig)

	assert.Nil(t, c.machine.Timer())
	_, ok := c.machine.Lookup(CarsGo, state.Timeout())
	assert.False(t, ok)
}

func TestController_CancelledHoldStaysPut(t *testing.T) {
	c := newCrossing(t, hw.NewSimDriver(testLogger()), testConfig)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.machine.Start(ctx))
	c.press(t, context.Background())
	require.Equal(t, WalkGo, c.machine.CurrentState())

	cancel()
	c.ctrl.hold = sleepHold
	cfg := c.ctrl.cfg
	cfg.AllRedHold = time.Hour
	c.ctrl.cfg = cfg

	require.NoError(t, c.machine.Step(ctx))
	assert.Equal(t, WalkGo, c.machine.CurrentState())
}

func TestController_HoldErrorFailsDoAction(t *testing.T) {
	ctx := context.Background()
	c := newCrossing(t, hw.NewSimDriver(testLogger()), testConfig)
	errHold := errors.New("hold failed")
	c.hold.err = errHold

	require.NoError(t, c.machine.Start(ctx))
	c.driver.Set(buttonPin, false)
	err := c.machine.Step(ctx)

	var cbErr *state.CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, state.PhaseDo, cbErr.Phase)
	assert.Equal(t, CarsSlow, cbErr.State)
	assert.ErrorIs(t, err, errHold)
}

// stuckDriver accepts configuration but fails every write.
type stuckDriver struct {
	*hw.SimDriver
}

func (stuckDriver) Write(hw.Pin, bool) error { return errors.New("pin stuck") }

func TestController_LampFailureStopsStart(t *testing.T) {
	c := newCrossing(t, stuckDriver{hw.NewSimDriver(testLogger())}, testConfig)

	err := c.machine.Start(context.Background())

	var cbErr *state.CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, state.PhaseEntry, cbErr.Phase)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeHardware, appErr.Code)
}

func TestController_InstallRequiresFourStates(t *testing.T) {
	display := hw.NewTextDisplay(0, 0, testLogger())
	driver := hw.NewSimDriver(testLogger())
	light, err := hw.NewDigitalLight(driver, 1, "lamp", testLogger())
	require.NoError(t, err)

	ctrl, err := New(Lights{CarRed: light, CarYellow: light, CarGreen: light, Walk: light, DontWalk: light}, display, testConfig)
	require.NoError(t, err)

	m, err := state.NewMachine(2, ctrl.Handlers())
	require.NoError(t, err)
	assert.Error(t, ctrl.Install(m, 0))
}

func TestNew_Validation(t *testing.T) {
	display := hw.NewTextDisplay(0, 0, testLogger())

	_, err := New(Lights{}, display, testConfig)
	assert.Error(t, err)

	driver := hw.NewSimDriver(testLogger())
	light, err := hw.NewDigitalLight(driver, 1, "lamp", testLogger())
	require.NoError(t, err)
	_, err = New(Lights{CarRed: light, CarYellow: light, CarGreen: light, Walk: light, DontWalk: light}, nil, testConfig)
	assert.Error(t, err)
}

func TestStateName(t *testing.T) {
	assert.Equal(t, "cars_go", StateName(CarsGo))
	assert.Equal(t, "walk_clear", StateName(WalkClear))
	assert.Equal(t, "state_9", StateName(9))
}

func TestSleepHold(t *testing.T) {
	assert.NoError(t, sleepHold(context.Background(), 0))
	assert.NoError(t, sleepHold(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepHold(ctx, time.Hour), context.Canceled)
}
