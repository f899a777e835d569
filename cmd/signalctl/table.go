package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Proton-105/signalctl/internal/app"
	"github.com/Proton-105/signalctl/internal/controller"
	"github.com/Proton-105/signalctl/internal/hw"
	"github.com/Proton-105/signalctl/internal/state"
	"github.com/Proton-105/signalctl/pkg/config"
)

var tableFormat string

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the crossing transition table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// build offline: no snapshots, no listener
		offline := *cfg
		offline.Redis.Enabled = false
		offline.HTTP.Enabled = false

		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		a, err := app.Build(cmd.Context(), &offline, hw.NewSimDriver(quiet), quiet)
		if err != nil {
			return err
		}

		return writeTable(cmd.OutOrStdout(), a.Machine().Describe(), tableFormat)
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCmd.Flags().StringVarP(&tableFormat, "format", "f", "table", "output format: table, yaml or dot")
}

func writeTable(w io.Writer, desc state.Description, format string) error {
	switch format {
	case "table":
		out := []string{"FROM|EVENT|TO"}
		for _, t := range desc.Transitions {
			out = append(out, fmt.Sprintf("%s|%s|%s", controller.StateName(t.From), t.Event, controller.StateName(t.To)))
		}
		_, err := fmt.Fprintf(w, "%s\n", columnize.SimpleFormat(out))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(desc); err != nil {
			return err
		}
		return enc.Close()
	case "dot":
		return state.WriteDOT(w, desc)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
