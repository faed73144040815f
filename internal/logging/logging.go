// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/logging/logging.go
// Summary: Process logger construction and the shared discard logger.
// Usage: cmd/vtengine builds one logger from config; library packages take a
//        logrus.FieldLogger and fall back to Discard().

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TimestampFormat matches the millisecond timestamps of the log file.
const TimestampFormat = "2006-01-02 15:04:05.000"

// Options selects the level and sink of the process logger.
type Options struct {
	Level string
	// File is the log file path. Empty logs to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// noopLogger is shared by every component constructed without a logger.
var noopLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger { return noopLogger }

// New builds a logger writing to a size-rotated file, or stderr when no file
// is configured.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		lvl, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = lvl
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
		DisableColors:   opts.File != "",
	})

	if opts.File == "" {
		l.SetOutput(os.Stderr)
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	l.SetOutput(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    max(opts.MaxSizeMB, 1),
		MaxBackups: max(opts.MaxBackups, 0),
	})
	return l, nil
}
