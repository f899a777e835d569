package hw

import (
	"log/slog"

	apperrors "github.com/Proton-105/signalctl/internal/errors"
	"github.com/Proton-105/signalctl/internal/state"
)

// InputPin is a button wired to a GPIO input. It satisfies state.DigitalReader.
type InputPin struct {
	driver Driver
	pin    Pin
	name   string
}

var _ state.DigitalReader = (*InputPin)(nil)

// NewInputPin configures pin as an input, pulled up for low-active buttons
// and pulled down otherwise.
func NewInputPin(driver Driver, pin Pin, name string, lowActive bool) (*InputPin, error) {
	pull := PullDown
	if lowActive {
		pull = PullUp
	}
	if err := driver.ConfigureInput(pin, pull); err != nil {
		return nil, apperrors.NewHardwareError(name, err)
	}

	return &InputPin{driver: driver, pin: pin, name: name}, nil
}

// Level reads the pin.
func (p *InputPin) Level() bool {
	return p.driver.Read(p.pin)
}

func (p *InputPin) Pin() Pin {
	return p.pin
}

func (p *InputPin) Name() string {
	return p.name
}

// DigitalSensor is a sensor with a thresholded digital output, such as a PIR
// motion sensor.
type DigitalSensor struct {
	driver    Driver
	pin       Pin
	name      string
	lowActive bool
	log       *slog.Logger
}

// NewDigitalSensor configures pin as an unbiased input.
func NewDigitalSensor(driver Driver, pin Pin, name string, lowActive bool, log *slog.Logger) (*DigitalSensor, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := driver.ConfigureInput(pin, PullNone); err != nil {
		return nil, apperrors.NewHardwareError(name, err)
	}

	return &DigitalSensor{driver: driver, pin: pin, name: name, lowActive: lowActive, log: log}, nil
}

// Tripped reports whether the sensor output is at its active level.
func (s *DigitalSensor) Tripped() bool {
	tripped := s.driver.Read(s.pin) != s.lowActive
	if tripped {
		s.log.Debug("sensor tripped", "sensor", s.name, "pin", s.pin)
	}
	return tripped
}

func (s *DigitalSensor) Name() string {
	return s.name
}
