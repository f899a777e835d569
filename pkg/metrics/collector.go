// Package metrics exposes state machine activity as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/signalctl/internal/state"
)

// StateNamer renders a state as a metric label.
type StateNamer func(state.State) string

// MachineObserver implements state.Observer on top of Prometheus collectors.
type MachineObserver struct {
	name StateNamer

	eventsTotal           *prometheus.CounterVec
	stateTransitionsTotal *prometheus.CounterVec
	currentState          prometheus.Gauge
	tickDurationSeconds   prometheus.Histogram
	tickOverrunsTotal     prometheus.Counter
	callbackErrorsTotal   *prometheus.CounterVec
	snapshotErrorsTotal   prometheus.Counter
}

var _ state.Observer = (*MachineObserver)(nil)

// NewMachineObserver registers the machine collectors on reg. A nil namer
// labels states by number.
func NewMachineObserver(reg prometheus.Registerer, namer StateNamer) *MachineObserver {
	if namer == nil {
		namer = func(s state.State) string { return strconv.Itoa(int(s)) }
	}

	factory := promauto.With(reg)

	return &MachineObserver{
		name: namer,
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsm_events_total",
				Help: "Total number of selected events labeled by event and whether a transition matched",
			},
			[]string{"event", "matched"},
		),
		stateTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsm_state_transitions_total",
				Help: "Total number of state transitions",
			},
			[]string{"from", "to", "cause"},
		),
		currentState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fsm_current_state",
				Help: "Numeric id of the current state",
			},
		),
		tickDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fsm_tick_duration_seconds",
				Help:    "Time spent in one tick, excluding the trailing sleep",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		tickOverrunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fsm_tick_overruns_total",
				Help: "Total number of ticks that took longer than the tick interval",
			},
		),
		callbackErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsm_callback_errors_total",
				Help: "Total number of failed callbacks split by phase and state",
			},
			[]string{"phase", "state"},
		),
		snapshotErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fsm_snapshot_errors_total",
				Help: "Total number of snapshots that could not be saved",
			},
		),
	}
}

// EventSelected counts the event chosen for a tick.
func (o *MachineObserver) EventSelected(ev state.Event, _ state.State, matched bool) {
	o.eventsTotal.WithLabelValues(ev.String(), strconv.FormatBool(matched)).Inc()
}

// StateChanged tracks FSM transitions.
func (o *MachineObserver) StateChanged(from, to state.State, cause state.Cause) {
	o.currentState.Set(float64(to))
	if cause == state.CauseStart {
		return
	}
	o.stateTransitionsTotal.WithLabelValues(o.name(from), o.name(to), string(cause)).Inc()
}

func (o *MachineObserver) TickCompleted(_ state.State, elapsed time.Duration, overrun bool) {
	o.tickDurationSeconds.Observe(elapsed.Seconds())
	if overrun {
		o.tickOverrunsTotal.Inc()
	}
}

func (o *MachineObserver) CallbackFailed(phase state.Phase, s state.State) {
	o.callbackErrorsTotal.WithLabelValues(string(phase), o.name(s)).Inc()
}

func (o *MachineObserver) SnapshotFailed(error) {
	o.snapshotErrorsTotal.Inc()
}
