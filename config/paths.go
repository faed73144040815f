// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/paths.go
// Summary: XDG path helpers for configuration, capture and log files.

package config

import "github.com/adrg/xdg"

const appDir = "vtengine"

// DefaultPath returns $XDG_CONFIG_HOME/vtengine/config.toml, creating the
// directory.
func DefaultPath() (string, error) {
	return xdg.ConfigFile(appDir + "/config.toml")
}

// DefaultCapturePath returns $XDG_DATA_HOME/vtengine/capture.db.
func DefaultCapturePath() (string, error) {
	return xdg.DataFile(appDir + "/capture.db")
}

// DefaultLogPath returns $XDG_STATE_HOME/vtengine/vtengine.log.
func DefaultLogPath() (string, error) {
	return xdg.StateFile(appDir + "/vtengine.log")
}

// CapturePath resolves the configured capture database path.
func (c CaptureConfig) CapturePath() (string, error) {
	if c.Path != "" {
		return c.Path, nil
	}
	return DefaultCapturePath()
}
