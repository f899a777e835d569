package main

import (
	"context"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "signalctl",
	Short:        "Pedestrian crossing controller driven by a polling state machine",
	SilenceUsage: true,
}

// Execute runs the root command. It is called once by main.
func Execute() {
	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./configs/<APP_ENV>.yaml)")
}
