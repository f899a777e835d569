package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Proton-105/signalctl/internal/app"
	apperrors "github.com/Proton-105/signalctl/internal/errors"
	"github.com/Proton-105/signalctl/internal/hw"
	"github.com/Proton-105/signalctl/pkg/config"
	"github.com/Proton-105/signalctl/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the crossing controller until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runController(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runController(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load(cfgFile)
	if err != nil {
		return apperrors.NewConfigurationError(err)
	}

	log, err := logger.New(cfg.Logger, cfg.Sentry)
	if err != nil {
		return apperrors.NewConfigurationError(err)
	}
	defer func() {
		if cerr := log.Close(); cerr != nil {
			log.Warn("failed to close logger", slog.Any("error", cerr))
		}
	}()

	log.Info("starting signalctl",
		slog.String("env", cfg.App.Env),
		slog.String("machine_id", cfg.Machine.ID),
		slog.Duration("tick_interval", cfg.Machine.TickInterval),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("http", cfg.HTTP.Enabled),
	)

	handler := apperrors.NewHandler(log.Logger, cfg.Sentry.Enabled)

	a, err := app.Build(ctx, cfg, hw.NewSimDriver(log.Logger), log.Logger)
	if err != nil {
		handler.Handle(ctx, err)
		return err
	}

	config.Watch(v, log.Logger, func(next *config.Config) {
		a.ApplyConfig(next)
		if err := log.SetLevel(next.Logger.Level); err != nil {
			log.Warn("ignoring log level from reloaded config", slog.Any("error", err))
		}
	})

	if err := a.Run(ctx); err != nil {
		handler.Handle(logger.WithRunID(ctx, a.Machine().RunID()), err)
		return err
	}

	log.Info("signalctl stopped")
	return nil
}
