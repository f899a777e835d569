package hw

import (
	"errors"
	"log/slog"
)

const (
	trafficGreen = iota
	trafficYellow
	trafficRed
)

// TrafficLight is a three-lamp signal where at most one lamp is lit.
type TrafficLight struct {
	lamps [3]Light
	log   *slog.Logger
}

// NewTrafficLight groups green, yellow and red lamps into one signal.
func NewTrafficLight(green, yellow, red Light, log *slog.Logger) (*TrafficLight, error) {
	if green == nil || yellow == nil || red == nil {
		return nil, errors.New("traffic light needs green, yellow and red lamps")
	}
	if log == nil {
		log = slog.Default()
	}

	return &TrafficLight{lamps: [3]Light{green, yellow, red}, log: log}, nil
}

// Go lights green only.
func (t *TrafficLight) Go() error {
	return t.singleOn(trafficGreen)
}

// Caution lights yellow only.
func (t *TrafficLight) Caution() error {
	return t.singleOn(trafficYellow)
}

// Stop lights red only.
func (t *TrafficLight) Stop() error {
	return t.singleOn(trafficRed)
}

// Off darkens every lamp.
func (t *TrafficLight) Off() error {
	return t.singleOn(-1)
}

// singleOn switches the others off before lighting lamp i, so two lamps are
// never lit together.
func (t *TrafficLight) singleOn(i int) error {
	for j, lamp := range t.lamps {
		if j == i {
			continue
		}
		if err := lamp.Off(); err != nil {
			return err
		}
	}

	if i < 0 {
		t.log.Debug("traffic light dark")
		return nil
	}
	if err := t.lamps[i].On(); err != nil {
		return err
	}
	t.log.Debug("traffic light switched", slog.String("lamp", t.lamps[i].Name()))
	return nil
}
