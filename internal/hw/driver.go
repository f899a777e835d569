// Package hw holds the devices the traffic-light controller drives: GPIO
// pins, lights, a character display and a motion sensor.
package hw

import "errors"

// Pin identifies a hardware GPIO pin number.
type Pin uint32

// Pull selects the input bias resistor.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// MaxDuty is full scale for SetDuty.
const MaxDuty uint16 = 65535

var (
	// ErrNotOutput indicates a write to a pin that is not configured as output.
	ErrNotOutput = errors.New("pin is not configured as output")
	// ErrOutOfBounds indicates display text placed outside the screen.
	ErrOutOfBounds = errors.New("position outside display")
)

// Driver is the GPIO interface devices are built on. Platform code provides
// the real implementation; SimDriver stands in everywhere else.
type Driver interface {
	// ConfigureInput configures pin as a digital input with the given bias.
	ConfigureInput(pin Pin, pull Pull) error
	// ConfigureOutput configures pin as a digital output, initially low.
	ConfigureOutput(pin Pin) error
	// Read returns the current level of pin. High is true.
	Read(pin Pin) bool
	// Write drives an output pin high or low.
	Write(pin Pin, level bool) error
	// SetDuty sets the PWM duty cycle of an output pin, 0 to MaxDuty.
	SetDuty(pin Pin, duty uint16) error
}
