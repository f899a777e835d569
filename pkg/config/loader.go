package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var envFiles = []string{".env.local", ".env"}

// Load reads configuration from a YAML file and environment variables, validates it, and returns the resulting Config.
// An empty path selects ./configs/<APP_ENV>.yaml.
func Load(path string) (*Config, *viper.Viper, error) {
	for _, file := range envFiles {
		// missing env files are fine
		_ = godotenv.Load(file)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if path == "" {
		path = fmt.Sprintf("./configs/%s.yaml", env)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	if cfg.App.Env == "" {
		cfg.App.Env = env
	}

	return cfg, v, nil
}

// Watch re-decodes the configuration whenever the file changes and hands valid results to onChange.
// Invalid edits are logged and ignored.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(*Config)) {
	if log == nil {
		log = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			log.Warn("config reload rejected", slog.String("file", e.Name), slog.Any("error", err))
			return
		}

		log.Info("config reloaded", slog.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "signalctl")
	v.SetDefault("app.env", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.file.path", "")
	v.SetDefault("logger.file.max_size_mb", 50)
	v.SetDefault("logger.file.max_backups", 3)
	v.SetDefault("logger.file.max_age_days", 14)
	v.SetDefault("logger.file.compress", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("machine.id", "crosswalk")
	v.SetDefault("machine.tick_interval", DefaultTickInterval)
	v.SetDefault("machine.debug", false)
	v.SetDefault("machine.debounce_samples", 2)
	v.SetDefault("machine.initial_state", 0)
	v.SetDefault("machine.resume", false)

	v.SetDefault("controller.yellow_hold", 2*time.Second)
	v.SetDefault("controller.all_red_hold", time.Second)
	v.SetDefault("controller.walk_hold", 5*time.Second)
	v.SetDefault("controller.clear_hold", 3*time.Second)
	v.SetDefault("controller.green_timeout", time.Duration(0))
	v.SetDefault("controller.motion_pin", 14)
	v.SetDefault("controller.motion_low_active", false)
	v.SetDefault("controller.lights.car_red", 6)
	v.SetDefault("controller.lights.car_yellow", 7)
	v.SetDefault("controller.lights.car_green", 8)
	v.SetDefault("controller.lights.walk", 9)
	v.SetDefault("controller.lights.dont_walk", 10)
	v.SetDefault("controller.lights.pwm", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", 24*time.Hour)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":9090")
	v.SetDefault("http.shutdown_timeout", 5*time.Second)
}
