// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for every configuration section.
// Notes: defaults/config.toml is the commented copy written on first run and
//        must decode to exactly this value.

package config

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Shell: ShellConfig{
			Command: DefaultShell,
		},
		Terminal: TerminalConfig{
			Cols: 80,
			Rows: 24,
			Term: "xterm-256color",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
	}
}
