package hw

import (
	"fmt"
	"log/slog"
	"sync"
)

type pinMode int

const (
	modeUnset pinMode = iota
	modeInput
	modeOutput
)

type simPin struct {
	mode   pinMode
	level  bool
	driven bool
	duty   uint16
}

// SimDriver is an in-memory Driver. Inputs follow their pull bias until
// driven with Set. Safe for concurrent use.
type SimDriver struct {
	mu   sync.Mutex
	pins map[Pin]*simPin
	log  *slog.Logger
}

var _ Driver = (*SimDriver)(nil)

// NewSimDriver creates a driver with no configured pins.
func NewSimDriver(log *slog.Logger) *SimDriver {
	if log == nil {
		log = slog.Default()
	}

	return &SimDriver{
		pins: make(map[Pin]*simPin),
		log:  log,
	}
}

func (d *SimDriver) ConfigureInput(pin Pin, pull Pull) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.pinLocked(pin)
	p.mode = modeInput
	if !p.driven {
		p.level = pull == PullUp
	}
	return nil
}

func (d *SimDriver) ConfigureOutput(pin Pin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.pinLocked(pin)
	p.mode = modeOutput
	p.level = false
	p.duty = 0
	return nil
}

func (d *SimDriver) Read(pin Pin) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pins[pin]; ok {
		return p.level
	}
	return false
}

func (d *SimDriver) Write(pin Pin, level bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pins[pin]
	if !ok || p.mode != modeOutput {
		return fmt.Errorf("write pin %d: %w", pin, ErrNotOutput)
	}

	p.level = level
	p.duty = 0
	if level {
		p.duty = MaxDuty
	}
	d.log.Debug("sim pin written", "pin", pin, "level", level)
	return nil
}

func (d *SimDriver) SetDuty(pin Pin, duty uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pins[pin]
	if !ok || p.mode != modeOutput {
		return fmt.Errorf("set duty pin %d: %w", pin, ErrNotOutput)
	}

	p.duty = duty
	p.level = duty > 0
	d.log.Debug("sim pin duty set", "pin", pin, "duty", duty)
	return nil
}

// Set drives pin from outside, as a pressed button or a tripped sensor would.
func (d *SimDriver) Set(pin Pin, level bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.pinLocked(pin)
	p.level = level
	p.driven = true
}

// Duty returns the last duty cycle written to pin.
func (d *SimDriver) Duty(pin Pin) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pins[pin]; ok {
		return p.duty
	}
	return 0
}

func (d *SimDriver) pinLocked(pin Pin) *simPin {
	p, ok := d.pins[pin]
	if !ok {
		p = &simPin{}
		d.pins[pin] = p
	}
	return p
}
