package hw

import (
	"log/slog"

	apperrors "github.com/Proton-105/signalctl/internal/errors"
)

// MaxLevel is full brightness for DimmableLight.
const MaxLevel = MaxDuty

// Light is a lamp that can be switched.
type Light interface {
	On() error
	Off() error
	Name() string
}

// DimmableLight is a Light with adjustable brightness.
type DimmableLight interface {
	Light
	SetLevel(level uint16) error
}

// DigitalLight is an LED on a digital output.
type DigitalLight struct {
	driver Driver
	pin    Pin
	name   string
	log    *slog.Logger
	lit    bool
}

var _ Light = (*DigitalLight)(nil)

// NewDigitalLight configures pin as an output and returns the light switched off.
func NewDigitalLight(driver Driver, pin Pin, name string, log *slog.Logger) (*DigitalLight, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := driver.ConfigureOutput(pin); err != nil {
		return nil, apperrors.NewHardwareError(name, err)
	}

	return &DigitalLight{driver: driver, pin: pin, name: name, log: log}, nil
}

func (l *DigitalLight) On() error {
	return l.set(true)
}

func (l *DigitalLight) Off() error {
	return l.set(false)
}

// Flip toggles the light.
func (l *DigitalLight) Flip() error {
	return l.set(!l.lit)
}

func (l *DigitalLight) Lit() bool {
	return l.lit
}

func (l *DigitalLight) Name() string {
	return l.name
}

func (l *DigitalLight) set(on bool) error {
	if err := l.driver.Write(l.pin, on); err != nil {
		return apperrors.NewHardwareError(l.name, err)
	}

	if on != l.lit {
		l.log.Debug("light switched", "light", l.name, "pin", l.pin, "on", on)
	}
	l.lit = on
	return nil
}

// PWMLight is an LED on a PWM output.
type PWMLight struct {
	driver Driver
	pin    Pin
	name   string
	log    *slog.Logger
	level  uint16
}

var _ DimmableLight = (*PWMLight)(nil)

// NewPWMLight configures pin as an output and returns the light at zero brightness.
func NewPWMLight(driver Driver, pin Pin, name string, log *slog.Logger) (*PWMLight, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := driver.ConfigureOutput(pin); err != nil {
		return nil, apperrors.NewHardwareError(name, err)
	}

	return &PWMLight{driver: driver, pin: pin, name: name, log: log}, nil
}

// On sets full brightness.
func (l *PWMLight) On() error {
	return l.SetLevel(MaxLevel)
}

func (l *PWMLight) Off() error {
	return l.SetLevel(0)
}

func (l *PWMLight) SetLevel(level uint16) error {
	if err := l.driver.SetDuty(l.pin, level); err != nil {
		return apperrors.NewHardwareError(l.name, err)
	}

	l.log.Debug("light level set", "light", l.name, "pin", l.pin, "level", level)
	l.level = level
	return nil
}

func (l *PWMLight) Level() uint16 {
	return l.level
}

func (l *PWMLight) Name() string {
	return l.name
}
