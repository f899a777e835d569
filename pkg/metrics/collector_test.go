package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/signalctl/internal/state"
)

func TestMachineObserver_CountsTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	names := []string{"idle", "busy"}
	obs := NewMachineObserver(reg, func(s state.State) string { return names[s] })

	obs.StateChanged(0, 0, state.CauseStart)
	obs.StateChanged(0, 1, state.CauseTable)
	obs.StateChanged(1, 0, state.CauseForced)
	obs.StateChanged(0, 1, state.CauseTable)

	assert.Equal(t, 2.0, testutil.ToFloat64(obs.stateTransitionsTotal.WithLabelValues("idle", "busy", "table")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.stateTransitionsTotal.WithLabelValues("busy", "idle", "forced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.currentState))
	assert.Equal(t, 2, testutil.CollectAndCount(obs.stateTransitionsTotal), "start is not a transition")
}

func TestMachineObserver_EventsTicksAndErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewMachineObserver(reg, nil)

	obs.EventSelected(state.Press(0), 0, true)
	obs.EventSelected(state.Press(0), 1, false)
	obs.EventSelected(state.Timeout(), 1, true)

	obs.TickCompleted(0, time.Millisecond, false)
	obs.TickCompleted(0, 50*time.Millisecond, true)

	obs.CallbackFailed(state.PhaseDo, 3)
	obs.SnapshotFailed(errors.New("redis down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.eventsTotal.WithLabelValues("BTN1_PRESS", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.eventsTotal.WithLabelValues("BTN1_PRESS", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.eventsTotal.WithLabelValues("TIMEOUT", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.tickOverrunsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.callbackErrorsTotal.WithLabelValues("do", "3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.snapshotErrorsTotal))

	expected := `
# HELP fsm_tick_overruns_total Total number of ticks that took longer than the tick interval
# TYPE fsm_tick_overruns_total counter
fsm_tick_overruns_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fsm_tick_overruns_total"))
}

func TestMachineObserver_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMachineObserver(reg, nil)

	assert.Panics(t, func() { NewMachineObserver(reg, nil) })
}
