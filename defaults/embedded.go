// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: defaults/embedded.go
// Summary: Embedded default configuration file.

package defaults

import _ "embed"

//go:embed config.toml
var configTOML []byte

// ConfigTOML returns the commented default configuration written on first run.
func ConfigTOML() []byte {
	out := make([]byte, len(configTOML))
	copy(out, configTOML)
	return out
}
