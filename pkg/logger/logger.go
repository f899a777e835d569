// Package logger builds the structured logger used across signalctl.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/signalctl/pkg/config"
)

const sentryFlushTimeout = 2 * time.Second

// Logger wraps slog.Logger with a mutable level and the resources behind it.
type Logger struct {
	*slog.Logger

	level  *slog.LevelVar
	file   io.Closer
	sentry bool
}

// New creates a Logger writing text or JSON to stdout, optionally mirrored to
// a rotating file, with sensitive attributes masked. When Sentry is enabled,
// error records are also forwarded there.
func New(cfg config.LoggerConfig, sentryCfg config.SentryConfig) (*Logger, error) {
	level := new(slog.LevelVar)
	parsed, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level.Set(parsed)

	var (
		out  io.Writer = os.Stdout
		file io.Closer
	)
	if cfg.File.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		file = rotating
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	if sentryCfg.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         sentryCfg.DSN,
			Environment: sentryCfg.Environment,
			SampleRate:  sentryCfg.SampleRate,
		}); err != nil {
			return nil, fmt.Errorf("logger: init sentry: %w", err)
		}

		handler = newTeeHandler(handler, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
	}

	return &Logger{
		Logger: slog.New(NewMaskingHandler(handler)),
		level:  level,
		file:   file,
		sentry: sentryCfg.Enabled,
	}, nil
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(name string) error {
	parsed, err := ParseLevel(name)
	if err != nil {
		return err
	}

	l.level.Set(parsed)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close flushes Sentry and closes the log file, if any.
func (l *Logger) Close() error {
	if l.sentry {
		sentry.Flush(sentryFlushTimeout)
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logger: %w", err)
	}
	return level, nil
}
