// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/embedded.go
// Summary: Access to the embedded default configuration file.
// The embedded file in defaults/ is what first-run users see on disk.

package config

import "github.com/framegrace/vtengine/defaults"

func defaultConfigFile() []byte {
	return defaults.ConfigTOML()
}
