// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/types.go
// Summary: Typed configuration sections and validation.

package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/framegrace/vtengine/internal/logging"
)

// ErrInvalid marks a configuration that parsed but holds unusable values.
var ErrInvalid = errors.New("invalid configuration")

// DefaultShell runs when no command is configured.
const DefaultShell = "/bin/sh"

const maxDimension = 1000

// Config is the complete vtengine configuration.
type Config struct {
	Shell    ShellConfig    `toml:"shell"`
	Terminal TerminalConfig `toml:"terminal"`
	Log      LogConfig      `toml:"log"`
	Capture  CaptureConfig  `toml:"capture"`
}

// ShellConfig selects the child program.
type ShellConfig struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
}

// TerminalConfig is the initial geometry and terminal type.
type TerminalConfig struct {
	Cols int    `toml:"cols"`
	Rows int    `toml:"rows"`
	Term string `toml:"term"`
}

// LogConfig selects the log level and sink.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// CaptureConfig controls byte-stream recording.
type CaptureConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Argv returns the program and arguments to run. An empty argument list is
// left empty; the session adds the login flag.
func (s ShellConfig) Argv() (string, []string) {
	cmd := strings.TrimSpace(s.Command)
	if cmd == "" {
		cmd = DefaultShell
	}
	return cmd, append([]string(nil), s.Args...)
}

// Environ returns base extended with TERM and the configured variables.
// Configured values replace inherited ones.
func (c Config) Environ(base []string) []string {
	set := map[string]string{}
	if c.Terminal.Term != "" {
		set["TERM"] = c.Terminal.Term
	}
	for k, v := range c.Shell.Env {
		set[k] = v
	}

	out := make([]string, 0, len(base)+len(set))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, override := set[k]; !override {
			out = append(out, kv)
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+set[k])
	}
	return out
}

// LoggingOptions converts the [log] section for internal/logging.
func (l LogConfig) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      l.Level,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
	}
}

// Validate reports every unusable value, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.Terminal.Cols < 1 || c.Terminal.Cols > maxDimension {
		bad("terminal.cols %d out of range 1..%d", c.Terminal.Cols, maxDimension)
	}
	if c.Terminal.Rows < 1 || c.Terminal.Rows > maxDimension {
		bad("terminal.rows %d out of range 1..%d", c.Terminal.Rows, maxDimension)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		bad("log.level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 1 {
		bad("log.max_size_mb must be positive")
	}
	if c.Log.MaxBackups < 0 {
		bad("log.max_backups must not be negative")
	}
	for k := range c.Shell.Env {
		if k == "" || strings.Contains(k, "=") {
			bad("shell.env key %q", k)
		}
	}
	return errors.Join(errs...)
}
