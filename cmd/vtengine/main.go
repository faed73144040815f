// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/main.go
// Summary: vtengine command line: run a shell in a terminal view, record raw
//          sessions, replay and list captures, manage configuration.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// Global flags
var (
	configPath string
	logLevel   string
	logFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit exitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.code & 0xff)
		}
		fmt.Fprintln(os.Stderr, "vtengine:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vtengine",
		Short: "Terminal emulation engine",
		Long: `vtengine runs programs on a pseudo-terminal and decodes their output into a
screen grid, the way a terminal emulator does.

Without a subcommand it behaves like "vtengine run".`,
		Example: `  # Run the configured shell inside the vtengine view
  vtengine

  # Run a specific program
  vtengine run -- htop

  # Record a session in raw passthrough mode
  vtengine record

  # List and replay captures
  vtengine sessions
  vtengine replay <id> --speed 1`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), args, runOptions{})
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: $XDG_CONFIG_HOME/vtengine/config.toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "Override the configured log file")

	root.AddCommand(
		newRunCmd(),
		newRecordCmd(),
		newReplayCmd(),
		newSessionsCmd(),
		newConfigCmd(),
	)
	return root
}
