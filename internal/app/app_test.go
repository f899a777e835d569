package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/signalctl/internal/controller"
	apperrors "github.com/Proton-105/signalctl/internal/errors"
	"github.com/Proton-105/signalctl/internal/hw"
	"github.com/Proton-105/signalctl/internal/state"
	"github.com/Proton-105/signalctl/pkg/config"
)

const (
	buttonPin = 15
	motionPin = 14
	machineID = "crossing-test"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(redisAddr string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "signalctl", Env: "test"},
		Machine: config.MachineConfig{
			ID:              machineID,
			TickInterval:    time.Millisecond,
			DebounceSamples: 1,
		},
		Inputs: []config.InputConfig{{Name: "crosswalk-button", Pin: buttonPin, LowActive: true}},
		Controller: config.ControllerConfig{
			YellowHold: time.Second,
			AllRedHold: time.Second,
			WalkHold:   time.Second,
			ClearHold:  time.Second,
			MotionPin:  motionPin,
			Lights: config.LightPins{
				CarRed:    6,
				CarYellow: 7,
				CarGreen:  8,
				Walk:      9,
				DontWalk:  10,
			},
		},
		Redis: config.RedisConfig{
			Enabled:     redisAddr != "",
			Addr:        redisAddr,
			SnapshotTTL: time.Hour,
		},
	}
}

// holdRecorder completes every hold immediately and remembers its length.
type holdRecorder struct {
	mu    sync.Mutex
	holds []time.Duration
}

func (h *holdRecorder) hold(_ context.Context, d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.holds = append(h.holds, d)
	return nil
}

func (h *holdRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.holds)
}

func storedSnapshot(mr *miniredis.Miniredis) (state.Snapshot, bool) {
	raw, err := mr.Get("fsm:snapshot:" + machineID)
	if err != nil {
		return state.Snapshot{}, false
	}

	var snap state.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return state.Snapshot{}, false
	}
	return snap, true
}

func TestApp_PressCycle(t *testing.T) {
	mr := miniredis.RunT(t)
	driver := hw.NewSimDriver(testLogger())
	holds := &holdRecorder{}

	a, err := Build(context.Background(), testConfig(mr.Addr()), driver, testLogger(), WithHold(holds.hold))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.Machine().Running() && driver.Read(8)
	}, time.Second, time.Millisecond, "car green never lit")

	// low-active button: pull the line down to press it
	driver.Set(buttonPin, false)

	require.Eventually(t, func() bool {
		return holds.count() == 4 && a.Machine().CurrentState() == controller.CarsGo
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		snap, ok := storedSnapshot(mr)
		return ok && snap.Cause == state.CauseForced && snap.State == controller.CarsGo
	}, time.Second, time.Millisecond)

	assert.Contains(t, a.Display().Line(0), "Don't Walk")
	require.NoError(t, a.Probes().Readiness(context.Background()))

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}

	assert.False(t, a.Machine().Running())
	assert.Error(t, a.Probes().Liveness(context.Background()))
}

func TestApp_Resume(t *testing.T) {
	testCases := []struct {
		name   string
		stored *state.Snapshot
		resume bool
		want   state.State
	}{
		{
			name:   "resumes stored state",
			stored: &state.Snapshot{MachineID: machineID, State: controller.WalkGo},
			resume: true,
			want:   controller.WalkGo,
		},
		{
			name:   "resume disabled",
			stored: &state.Snapshot{MachineID: machineID, State: controller.WalkGo},
			want:   controller.CarsGo,
		},
		{
			name:   "stored state out of range",
			stored: &state.Snapshot{MachineID: machineID, State: 9},
			resume: true,
			want:   controller.CarsGo,
		},
		{
			name:   "nothing stored",
			resume: true,
			want:   controller.CarsGo,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			if tc.stored != nil {
				raw, err := json.Marshal(tc.stored)
				require.NoError(t, err)
				require.NoError(t, mr.Set("fsm:snapshot:"+machineID, string(raw)))
			}

			cfg := testConfig(mr.Addr())
			cfg.Machine.Resume = tc.resume

			a, err := Build(context.Background(), cfg, hw.NewSimDriver(testLogger()), testLogger())
			require.NoError(t, err)

			assert.Equal(t, tc.want, a.Machine().Describe().Initial)
		})
	}
}

func TestApp_WithoutRedis(t *testing.T) {
	a, err := Build(context.Background(), testConfig(""), hw.NewSimDriver(testLogger()), testLogger())
	require.NoError(t, err)

	desc := a.Machine().Describe()
	assert.Equal(t, controller.NumStates, desc.NumStates)
	assert.Equal(t, 1, desc.Inputs)
	assert.Equal(t, []state.InputInfo{{Index: 0, LowActive: true}}, desc.InputLines)
	assert.False(t, desc.HasTimer)
	assert.Len(t, desc.Transitions, controller.NumStates)
}

func TestApp_PWMLamps(t *testing.T) {
	cfg := testConfig("")
	cfg.Controller.Lights.PWM = true
	driver := hw.NewSimDriver(testLogger())

	a, err := Build(context.Background(), cfg, driver, testLogger())
	require.NoError(t, err)
	require.NoError(t, a.Machine().Start(context.Background()))

	assert.Equal(t, hw.MaxLevel, driver.Duty(8), "car green at full brightness")
	assert.Zero(t, driver.Duty(6))
	assert.Equal(t, hw.MaxLevel, driver.Duty(10), "dont walk at full brightness")
}

func TestApp_GreenTimeoutInstallsTimer(t *testing.T) {
	cfg := testConfig("")
	cfg.Controller.GreenTimeout = 30 * time.Second

	a, err := Build(context.Background(), cfg, hw.NewSimDriver(testLogger()), testLogger())
	require.NoError(t, err)

	desc := a.Machine().Describe()
	assert.True(t, desc.HasTimer)
	assert.Contains(t, desc.Transitions, state.TransitionInfo{From: controller.CarsGo, Event: "TIMEOUT", To: controller.CarsSlow})
}

func TestApp_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	policy := apperrors.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, Multiplier: 1}
	_, err := Build(context.Background(), testConfig(addr), hw.NewSimDriver(testLogger()), testLogger(), WithRedisRetry(policy))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeStorage, appErr.Code)
}

func TestApp_ApplyConfig(t *testing.T) {
	cfg := testConfig("")
	a, err := Build(context.Background(), cfg, hw.NewSimDriver(testLogger()), testLogger())
	require.NoError(t, err)
	require.False(t, a.Machine().Debug())

	reloaded := *cfg
	reloaded.Machine.Debug = true
	a.ApplyConfig(&reloaded)

	assert.True(t, a.Machine().Debug())
}

func TestDefaultTickIntervalMatchesMachine(t *testing.T) {
	assert.Equal(t, state.DefaultTickInterval, config.DefaultTickInterval)
}

func TestClassify(t *testing.T) {
	hwErr := apperrors.NewHardwareError("car_red", errors.New("pin not output"))

	testCases := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "config error",
			err:      &state.ConfigError{Op: "run", Err: state.ErrInvalidTickInterval},
			wantCode: apperrors.CodeConfiguration,
		},
		{
			name:     "callback error",
			err:      &state.CallbackError{Phase: state.PhaseDo, State: 1, Err: errors.New("display offline")},
			wantCode: apperrors.CodeController,
		},
		{
			name:     "hardware fault inside callback",
			err:      &state.CallbackError{Phase: state.PhaseEntry, State: 0, Err: hwErr},
			wantCode: apperrors.CodeHardware,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var appErr *apperrors.AppError
			require.ErrorAs(t, classify(tc.err), &appErr)
			assert.Equal(t, tc.wantCode, appErr.Code)
		})
	}

	t.Run("hardware fault keeps callback context", func(t *testing.T) {
		in := &state.CallbackError{Phase: state.PhaseEntry, State: controller.WalkGo, Event: state.Press(0), Err: hwErr}

		out := classify(in)

		var appErr *apperrors.AppError
		require.ErrorAs(t, out, &appErr)
		assert.Equal(t, apperrors.CodeHardware, appErr.Code)
		assert.Equal(t, apperrors.SeverityHigh, appErr.Severity)

		var cbErr *state.CallbackError
		require.ErrorAs(t, out, &cbErr)
		assert.Equal(t, state.PhaseEntry, cbErr.Phase)
		assert.Equal(t, controller.WalkGo, cbErr.State)
		assert.Equal(t, state.Press(0), cbErr.Event)
		assert.Contains(t, out.Error(), "car_red")
		assert.Contains(t, out.Error(), "BTN1_PRESS")
	})

	plain := fmt.Errorf("listener closed")
	assert.Equal(t, plain, classify(plain))
}
