// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/clone.go
// Summary: Deep copy for configs handed across goroutines.

package config

// Clone returns a copy of c that shares no slices or maps with it.
func (c Config) Clone() Config {
	out := c
	if c.Shell.Args != nil {
		out.Shell.Args = append([]string(nil), c.Shell.Args...)
	}
	if c.Shell.Env != nil {
		out.Shell.Env = make(map[string]string, len(c.Shell.Env))
		for k, v := range c.Shell.Env {
			out.Shell.Env[k] = v
		}
	}
	return out
}
