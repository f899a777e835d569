// Package app assembles the crossing controller, its state machine and the
// ambient services around them from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Proton-105/signalctl/internal/controller"
	"github.com/Proton-105/signalctl/internal/diag"
	apperrors "github.com/Proton-105/signalctl/internal/errors"
	"github.com/Proton-105/signalctl/internal/health"
	"github.com/Proton-105/signalctl/internal/hw"
	"github.com/Proton-105/signalctl/internal/lifecycle"
	"github.com/Proton-105/signalctl/internal/state"
	"github.com/Proton-105/signalctl/pkg/config"
	"github.com/Proton-105/signalctl/pkg/graceful"
	"github.com/Proton-105/signalctl/pkg/logger"
	"github.com/Proton-105/signalctl/pkg/metrics"
	pkgredis "github.com/Proton-105/signalctl/pkg/redis"
)

const (
	displayRows       = 2
	displayCols       = 16
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// App owns every component of one controller process.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	registry   *prometheus.Registry
	machine    *state.Machine
	controller *controller.Controller
	display    *hw.TextDisplay
	storage    state.Storage
	probes     *lifecycle.Probes
	server     *graceful.Server
	shutdown   *lifecycle.Shutdown
}

// Option customizes Build.
type Option func(*options)

type options struct {
	hold  controller.HoldFunc
	retry *apperrors.RetryPolicy
}

// WithHold replaces the controller's blocking holds.
func WithHold(hold controller.HoldFunc) Option {
	return func(o *options) {
		o.hold = hold
	}
}

// WithRedisRetry replaces the retry policy for the initial Redis connection.
func WithRedisRetry(policy apperrors.RetryPolicy) Option {
	return func(o *options) {
		o.retry = &policy
	}
}

// Build wires the controller to driver and, when enabled, to Redis and the
// diagnostics server. Redis connection attempts are retried.
func Build(ctx context.Context, cfg *config.Config, driver hw.Driver, log *slog.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		shutdown: lifecycle.NewShutdown(log),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	checker := health.NewChecker(log)

	if cfg.Redis.Enabled {
		client, err := connectRedis(ctx, cfg.Redis, a.retryPolicy(o))
		if err != nil {
			return nil, err
		}
		kv := pkgredis.NewMetricsClient(client, pkgredis.NewMetrics(a.registry))
		a.storage = state.NewRedisStorage(kv, log, cfg.Redis.SnapshotTTL)
		checker.AddCheck("redis", health.NewRedisChecker(kv))
		a.shutdown.Register("redis", func(context.Context) error { return kv.Close() })
	}

	if err := a.buildController(driver, o); err != nil {
		return nil, err
	}
	if err := a.buildMachine(ctx, driver); err != nil {
		return nil, err
	}

	loop := health.NewMachineChecker(a.machine)
	checker.AddCheck("machine", loop)
	a.probes = lifecycle.NewProbes(log, loop, checker)

	if cfg.HTTP.Enabled {
		router := diag.NewRouter(diag.Options{
			Machine:    a.machine,
			MachineID:  cfg.Machine.ID,
			Probes:     a.probes,
			Gatherer:   a.registry,
			Registerer: a.registry,
			StateName:  controller.StateName,
			Logger:     log,
		})
		a.server = graceful.NewServer(log, &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		}, cfg.HTTP.ShutdownTimeout)
	}

	return a, nil
}

func (a *App) retryPolicy(o options) apperrors.RetryPolicy {
	policy := apperrors.DefaultRetryPolicy()
	if o.retry != nil {
		policy = *o.retry
	}
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		a.log.Warn("redis connection failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}
	return policy
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, policy apperrors.RetryPolicy) (*pkgredis.Client, error) {
	var client *pkgredis.Client
	err := policy.Do(ctx, func() error {
		c, err := pkgredis.New(ctx, pkgredis.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return apperrors.NewStorageError(err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *App) buildController(driver hw.Driver, o options) error {
	pins := a.cfg.Controller.Lights

	newLight := func(pin hw.Pin, name string) (hw.Light, error) {
		if pins.PWM {
			return hw.NewPWMLight(driver, pin, name, a.log)
		}
		return hw.NewDigitalLight(driver, pin, name, a.log)
	}

	lights := controller.Lights{}
	for _, l := range []struct {
		dst  *hw.Light
		pin  uint32
		name string
	}{
		{&lights.CarRed, pins.CarRed, "car_red"},
		{&lights.CarYellow, pins.CarYellow, "car_yellow"},
		{&lights.CarGreen, pins.CarGreen, "car_green"},
		{&lights.Walk, pins.Walk, "walk"},
		{&lights.DontWalk, pins.DontWalk, "dont_walk"},
	} {
		light, err := newLight(hw.Pin(l.pin), l.name)
		if err != nil {
			return err
		}
		*l.dst = light
	}

	motion, err := hw.NewDigitalSensor(driver, hw.Pin(a.cfg.Controller.MotionPin), "motion", a.cfg.Controller.MotionLowActive, a.log)
	if err != nil {
		return err
	}

	a.display = hw.NewTextDisplay(displayRows, displayCols, a.log)

	ctrlOpts := []controller.Option{
		controller.WithMotionSensor(motion),
		controller.WithLogger(a.log),
	}
	if o.hold != nil {
		ctrlOpts = append(ctrlOpts, controller.WithHold(o.hold))
	}

	cc := a.cfg.Controller
	ctrl, err := controller.New(lights, a.display, controller.Config{
		YellowHold:   cc.YellowHold,
		AllRedHold:   cc.AllRedHold,
		WalkHold:     cc.WalkHold,
		ClearHold:    cc.ClearHold,
		GreenTimeout: cc.GreenTimeout,
	}, ctrlOpts...)
	if err != nil {
		return apperrors.NewConfigurationError(err)
	}

	a.controller = ctrl
	return nil
}

func (a *App) buildMachine(ctx context.Context, driver hw.Driver) error {
	mc := a.cfg.Machine

	machineOpts := []state.Option{
		state.WithInitialState(a.initialState(ctx)),
		state.WithDebug(mc.Debug),
		state.WithLogger(a.log),
		state.WithObserver(metrics.NewMachineObserver(a.registry, controller.StateName)),
		state.WithRunID(logger.NewRunID()),
	}
	if a.storage != nil {
		machineOpts = append(machineOpts, state.WithStorage(a.storage, mc.ID))
	}

	m, err := state.NewMachine(controller.NumStates, a.controller.Handlers(), machineOpts...)
	if err != nil {
		return apperrors.NewConfigurationError(err)
	}

	for _, in := range a.cfg.Inputs {
		pin, err := hw.NewInputPin(driver, hw.Pin(in.Pin), in.Name, in.LowActive)
		if err != nil {
			return err
		}
		if _, err := m.RegisterInput(pin, in.LowActive, state.WithDebounceSamples(mc.DebounceSamples)); err != nil {
			return apperrors.NewConfigurationError(err)
		}
	}

	// The first configured input is the crosswalk button.
	if err := a.controller.Install(m, 0); err != nil {
		return apperrors.NewConfigurationError(err)
	}

	a.machine = m
	return nil
}

// initialState is machine.initial_state, or the stored state when resuming
// and a usable snapshot exists.
func (a *App) initialState(ctx context.Context) state.State {
	initial := state.State(a.cfg.Machine.InitialState)
	if !a.cfg.Machine.Resume || a.storage == nil {
		return initial
	}

	snap, err := a.storage.LoadSnapshot(ctx, a.cfg.Machine.ID)
	switch {
	case errors.Is(err, state.ErrSnapshotNotFound):
		a.log.Info("no snapshot to resume from", slog.String("machine_id", a.cfg.Machine.ID))
		return initial
	case err != nil:
		a.log.Warn("failed to load snapshot, starting fresh", slog.Any("error", err))
		return initial
	case snap.State < 0 || int(snap.State) >= controller.NumStates:
		a.log.Warn("stored state out of range, starting fresh", slog.Int("state", int(snap.State)))
		return initial
	}

	a.log.Info("resuming from snapshot",
		slog.String("state", controller.StateName(snap.State)),
		slog.String("previous_run_id", snap.RunID),
		slog.Time("updated_at", snap.UpdatedAt),
	)
	return snap.State
}

// Run drives the machine until ctx is cancelled, serving diagnostics
// alongside it, then runs the shutdown hooks. Loop failures are returned as
// *apperrors.AppError.
func (a *App) Run(ctx context.Context) error {
	ctx = logger.WithRunID(ctx, a.machine.RunID())

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			err := a.server.ListenAndServe(loopCtx)
			if err != nil {
				// a failed listener stops the loop
				cancel()
			}
			serverErr <- err
		}()
	} else {
		serverErr <- nil
	}

	tick := a.cfg.Machine.TickInterval
	if tick == 0 {
		tick = state.DefaultTickInterval
	}
	runErr := a.machine.Run(loopCtx, tick)
	cancel()

	srvErr := <-serverErr

	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer done()
	hookErr := a.shutdown.Execute(shutdownCtx)

	if runErr != nil {
		return classify(runErr)
	}
	if srvErr != nil {
		return fmt.Errorf("diagnostics server: %w", srvErr)
	}
	return hookErr
}

// ApplyConfig applies the hot-reloadable settings of cfg.
func (a *App) ApplyConfig(cfg *config.Config) {
	if a.machine.Debug() != cfg.Machine.Debug {
		a.log.Info("debug mode changed", slog.Bool("enabled", cfg.Machine.Debug))
	}
	a.machine.SetDebug(cfg.Machine.Debug)
}

func (a *App) Machine() *state.Machine {
	return a.machine
}

func (a *App) Display() *hw.TextDisplay {
	return a.display
}

func (a *App) Probes() *lifecycle.Probes {
	return a.probes
}

func classify(err error) error {
	var cfgErr *state.ConfigError
	if errors.As(err, &cfgErr) {
		return apperrors.NewConfigurationError(err)
	}

	var cbErr *state.CallbackError
	if errors.As(err, &cbErr) {
		// hardware faults keep their own code
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr.Within(err)
		}
		return apperrors.NewControllerError(err)
	}

	return err
}
