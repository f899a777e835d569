// Package controller implements a pedestrian crossing on top of the state
// machine: a car signal, a walk signal, a request button, an optional motion
// sensor and a character display.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/signalctl/internal/hw"
	"github.com/Proton-105/signalctl/internal/state"
)

const (
	CarsGo state.State = iota
	CarsSlow
	WalkGo
	WalkClear

	// NumStates is the size of the crossing state space.
	NumStates = 4
)

var stateNames = [NumStates]string{"cars_go", "cars_slow", "walk_go", "walk_clear"}

// StateName returns the label of s, or its number for unknown states.
func StateName(s state.State) string {
	if s >= 0 && int(s) < NumStates {
		return stateNames[s]
	}
	return fmt.Sprintf("state_%d", s)
}

// Config holds the sequence timings.
type Config struct {
	YellowHold time.Duration
	AllRedHold time.Duration
	WalkHold   time.Duration
	ClearHold  time.Duration
	// GreenTimeout ends the car phase without a button press. Zero disables it.
	GreenTimeout time.Duration
}

// Lights are the signal lamps of the crossing.
type Lights struct {
	CarRed    hw.Light
	CarYellow hw.Light
	CarGreen  hw.Light
	Walk      hw.Light
	DontWalk  hw.Light
}

func (l Lights) validate() error {
	for name, light := range map[string]hw.Light{
		"car red":    l.CarRed,
		"car yellow": l.CarYellow,
		"car green":  l.CarGreen,
		"walk":       l.Walk,
		"dont walk":  l.DontWalk,
	} {
		if light == nil {
			return fmt.Errorf("%s light is required", name)
		}
	}
	return nil
}

// MotionSensor reports approaching pedestrians.
type MotionSensor interface {
	Tripped() bool
}

// HoldFunc blocks for d or until ctx is done, returning ctx.Err() in that case.
type HoldFunc func(ctx context.Context, d time.Duration) error

// Controller sequences the crossing. Its per-state actions are installed on a
// machine through Handlers and Install.
type Controller struct {
	cfg     Config
	lights  Lights
	cars    *hw.TrafficLight
	display hw.Display
	motion  MotionSensor
	hold    HoldFunc
	clock   state.Clock
	log     *slog.Logger

	machine *state.Machine
	timer   *state.Timer
}

// Option configures a Controller.
type Option func(*Controller)

// WithMotionSensor lets the car phase end early when motion is detected.
func WithMotionSensor(sensor MotionSensor) Option {
	return func(c *Controller) {
		c.motion = sensor
	}
}

// WithHold replaces the blocking wait used between signal changes.
func WithHold(hold HoldFunc) Option {
	return func(c *Controller) {
		if hold != nil {
			c.hold = hold
		}
	}
}

// WithClock sets the clock of the green timeout timer.
func WithClock(clock state.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger sets the logger for the controller.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a controller for the given lamps and display.
func New(lights Lights, display hw.Display, cfg Config, opts ...Option) (*Controller, error) {
	if err := lights.validate(); err != nil {
		return nil, err
	}
	if display == nil {
		return nil, errors.New("display is required")
	}

	c := &Controller{
		cfg:     cfg,
		lights:  lights,
		display: display,
		hold:    sleepHold,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cars, err := hw.NewTrafficLight(lights.CarGreen, lights.CarYellow, lights.CarRed, c.log)
	if err != nil {
		return nil, err
	}
	c.cars = cars

	return c, nil
}

// Handlers returns the per-state actions to build the machine with.
func (c *Controller) Handlers() state.HandlerTable {
	return state.HandlerTable{
		CarsGo: {
			Entry: c.enterCarsGo,
			Exit:  c.exitCarsGo,
			Do:    c.doCarsGo,
		},
		CarsSlow: {
			Entry: c.enterCarsSlow,
			Do:    c.doCarsSlow,
		},
		WalkGo: {
			Entry: c.enterWalkGo,
			Do:    c.doWalkGo,
		},
		WalkClear: {
			Entry: c.enterWalkClear,
			Exit:  c.exitWalkClear,
			Do:    c.doWalkClear,
		},
	}
}

// Install registers the crossing transitions on m: each press of button
// advances the cycle, and the green timeout, when configured, ends the car
// phase. m must have been built with Handlers and not yet started.
func (c *Controller) Install(m *state.Machine, button int) error {
	if m.NumStates() != NumStates {
		return fmt.Errorf("controller needs %d states, machine has %d", NumStates, m.NumStates())
	}

	for s := CarsGo; s <= WalkClear; s++ {
		if err := m.AddTransition(s, state.Press(button), (s+1)%NumStates); err != nil {
			return err
		}
	}

	if c.cfg.GreenTimeout > 0 {
		timer := state.NewTimer(c.clock)
		if err := m.SetTimer(timer); err != nil {
			return err
		}
		if err := m.AddTransition(CarsGo, state.Timeout(), CarsSlow); err != nil {
			return err
		}
		c.timer = timer
	}

	c.machine = m
	return nil
}

func (c *Controller) enterCarsGo(_ context.Context, s state.State) error {
	c.entered(s)

	if err := c.cars.Go(); err != nil {
		return err
	}
	if err := c.switchLights(
		[]hw.Light{c.lights.DontWalk},
		[]hw.Light{c.lights.Walk},
	); err != nil {
		return err
	}
	if err := c.show("Don't Walk"); err != nil {
		return err
	}

	if c.timer != nil {
		c.timer.Arm(c.cfg.GreenTimeout)
	}
	return nil
}

func (c *Controller) exitCarsGo(context.Context, state.State) error {
	if c.timer != nil {
		c.timer.Cancel()
	}
	return nil
}

func (c *Controller) doCarsGo(ctx context.Context, _ state.State) error {
	if c.motion != nil && c.motion.Tripped() {
		c.log.Info("motion detected, ending car phase")
		return c.machine.GotoState(ctx, CarsSlow)
	}
	return nil
}

func (c *Controller) enterCarsSlow(_ context.Context, s state.State) error {
	c.entered(s)
	return c.cars.Caution()
}

func (c *Controller) doCarsSlow(ctx context.Context, _ state.State) error {
	if done, err := c.wait(ctx, c.cfg.YellowHold); !done {
		return err
	}
	return c.machine.GotoState(ctx, WalkGo)
}

func (c *Controller) enterWalkGo(_ context.Context, s state.State) error {
	c.entered(s)
	return c.cars.Stop()
}

func (c *Controller) doWalkGo(ctx context.Context, _ state.State) error {
	if done, err := c.wait(ctx, c.cfg.AllRedHold); !done {
		return err
	}

	if err := c.switchLights(
		[]hw.Light{c.lights.Walk},
		[]hw.Light{c.lights.DontWalk},
	); err != nil {
		return err
	}
	if err := c.show("Walk"); err != nil {
		return err
	}

	if done, err := c.wait(ctx, c.cfg.WalkHold); !done {
		return err
	}
	return c.machine.GotoState(ctx, WalkClear)
}

func (c *Controller) enterWalkClear(_ context.Context, s state.State) error {
	c.entered(s)

	if err := c.switchLights(
		[]hw.Light{c.lights.DontWalk},
		[]hw.Light{c.lights.Walk},
	); err != nil {
		return err
	}
	return c.show("Don't Walk")
}

func (c *Controller) exitWalkClear(context.Context, state.State) error {
	return c.display.Reset()
}

func (c *Controller) doWalkClear(ctx context.Context, _ state.State) error {
	if done, err := c.wait(ctx, c.cfg.ClearHold); !done {
		return err
	}
	return c.machine.GotoState(ctx, CarsGo)
}

// wait runs the hold. It reports false when the hold did not complete; the
// error is nil if that was because ctx ended.
func (c *Controller) wait(ctx context.Context, d time.Duration) (bool, error) {
	if err := c.hold(ctx, d); err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Controller) switchLights(on, off []hw.Light) error {
	for _, light := range off {
		if err := light.Off(); err != nil {
			return err
		}
	}
	for _, light := range on {
		if err := light.On(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) show(text string) error {
	if err := c.display.Reset(); err != nil {
		return err
	}
	return c.display.ShowText(text, 0, 0)
}

func (c *Controller) entered(s state.State) {
	c.log.Info("crossing state entered", slog.String("state", StateName(s)))
}

func sleepHold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
