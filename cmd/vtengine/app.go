// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/app.go
// Summary: Shared setup for subcommands: configuration, logging, capture.

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/framegrace/vtengine/capture"
	"github.com/framegrace/vtengine/config"
	"github.com/framegrace/vtengine/internal/logging"
	"github.com/framegrace/vtengine/terminal"
)

// app bundles what every subcommand needs.
type app struct {
	store *config.Store
	cfg   config.Config
	log   *logrus.Logger
}

// loadApp opens the configuration and builds the logger. Interactive
// commands own the terminal, so their logs go to a file when none is
// configured.
func loadApp(interactive bool) (*app, error) {
	store, err := config.Open(configPath, logging.Discard())
	if err != nil {
		return nil, err
	}
	cfg := store.Current()

	opts := cfg.Log.LoggingOptions()
	if logLevel != "" {
		opts.Level = logLevel
	}
	if logFile != "" {
		opts.File = logFile
	}
	if opts.File == "" && interactive {
		if opts.File, err = config.DefaultLogPath(); err != nil {
			return nil, err
		}
	}
	log, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	store.SetLogger(log)
	log.WithField("path", store.Path()).Debug("Config: in use")
	return &app{store: store, cfg: cfg, log: log}, nil
}

// openCapture opens the capture database named by the configuration.
func (a *app) openCapture() (*capture.Store, error) {
	path, err := a.cfg.Capture.CapturePath()
	if err != nil {
		return nil, err
	}
	return capture.Open(path, a.log)
}

// recorderFactory adapts a capture store to the emulator's recorder hook.
func recorderFactory(cs *capture.Store) terminal.RecorderFactory {
	return func(command string, args []string, cols, rows int) (terminal.Recorder, error) {
		rec, err := cs.Begin(command, args, cols, rows)
		if err != nil {
			return nil, fmt.Errorf("begin capture: %w", err)
		}
		return rec, nil
	}
}
