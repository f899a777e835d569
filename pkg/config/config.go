// Package config provides configuration loading and validation utilities.
package config

import "time"

// DefaultTickInterval is the machine.tick_interval default. It equals
// state.DefaultTickInterval, which this package cannot import.
const DefaultTickInterval = 100 * time.Millisecond

// Config holds runtime configuration for signalctl.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Machine    MachineConfig    `mapstructure:"machine"`
	Inputs     []InputConfig    `mapstructure:"inputs" validate:"min=1,max=4,dive"`
	Controller ControllerConfig `mapstructure:"controller"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Name string `mapstructure:"name" validate:"required"`
}

type LoggerConfig struct {
	Level  string     `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string     `mapstructure:"format" validate:"omitempty,oneof=text json"`
	File   FileConfig `mapstructure:"file"`
}

// FileConfig enables rotating file output when Path is set.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// MachineConfig configures the state machine loop.
type MachineConfig struct {
	ID              string        `mapstructure:"id" validate:"required"`
	TickInterval    time.Duration `mapstructure:"tick_interval" validate:"gt=0"`
	Debug           bool          `mapstructure:"debug"`
	DebounceSamples int           `mapstructure:"debounce_samples" validate:"gte=1"`
	InitialState    int           `mapstructure:"initial_state" validate:"gte=0"`
	Resume          bool          `mapstructure:"resume"`
}

// InputConfig describes one button input. Registration order follows the list order.
type InputConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	Pin       uint32 `mapstructure:"pin"`
	LowActive bool   `mapstructure:"low_active"`
}

// ControllerConfig configures the reference traffic-light controller.
type ControllerConfig struct {
	YellowHold      time.Duration `mapstructure:"yellow_hold" validate:"gte=0"`
	AllRedHold      time.Duration `mapstructure:"all_red_hold" validate:"gte=0"`
	WalkHold        time.Duration `mapstructure:"walk_hold" validate:"gte=0"`
	ClearHold       time.Duration `mapstructure:"clear_hold" validate:"gte=0"`
	GreenTimeout    time.Duration `mapstructure:"green_timeout" validate:"gte=0"`
	MotionPin       uint32        `mapstructure:"motion_pin"`
	MotionLowActive bool          `mapstructure:"motion_low_active"`
	Lights          LightPins     `mapstructure:"lights"`
}

// LightPins maps each signal lamp to an output pin.
type LightPins struct {
	CarRed    uint32 `mapstructure:"car_red"`
	CarYellow uint32 `mapstructure:"car_yellow"`
	CarGreen  uint32 `mapstructure:"car_green"`
	Walk      uint32 `mapstructure:"walk"`
	DontWalk  uint32 `mapstructure:"dont_walk"`
	// PWM drives the lamps through PWM outputs instead of digital writes.
	PWM bool `mapstructure:"pwm"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"gte=0"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" validate:"gte=0"`
}

type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}
