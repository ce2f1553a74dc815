package main

import (
	"github.com/spf13/cobra"
)

var (
	logFormat string
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "timelyworlds",
	Short:   "Branching-futures streaming analytics engine",
	Long:    `timelyworlds runs a beam-search scenario tree over a synthetic event stream, maintaining a base top-K and a per-scenario top-K incrementally each epoch.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "slog", "log backend: slog, zerolog, or zap")
	rootCmd.AddCommand(runCmd)
}
