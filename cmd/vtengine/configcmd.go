// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/configcmd.go
// Summary: "config": shows, validates and resets the configuration file.

package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/framegrace/vtengine/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vtengine configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := loadApp(false)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.store.Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := loadApp(false)
				if err != nil {
					return err
				}
				out, err := toml.Marshal(a.cfg)
				if err != nil {
					return fmt.Errorf("encode config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Overwrite the configuration file with the defaults",
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := configPath
				if path == "" {
					p, err := config.DefaultPath()
					if err != nil {
						return err
					}
					path = p
				}
				if err := config.WriteDefaults(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", path)
				return nil
			},
		},
	)
	return cmd
}
