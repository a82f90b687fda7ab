package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	flagConfig    string
	flagEndpoint  string
	flagToken     string
	flagLogLevel  string
	flagLogFormat string
	flagMetrics   bool
)

var rootCmd = &cobra.Command{
	Use:           "enginelink",
	Short:         "Client for the remote modeling engine",
	Long:          "enginelink maintains an authenticated session to a remote modeling engine and executes commands against it, individually, in batches, or from an embedded compute kernel.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	pf.StringVar(&flagEndpoint, "endpoint", "", "engine endpoint (ws:// or wss://), overrides config")
	pf.StringVar(&flagToken, "token", "", "bearer credential, overrides stored and configured tokens")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
	pf.BoolVar(&flagMetrics, "metrics", false, "serve Prometheus metrics while running")
}
