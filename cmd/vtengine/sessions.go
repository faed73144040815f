// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/sessions.go
// Summary: "sessions": lists and deletes captures.

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/framegrace/vtengine/capture"
)

func newSessionsCmd() *cobra.Command {
	var (
		limit  int
		remove []string
	)
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List recorded sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(false)
			if err != nil {
				return err
			}
			cs, err := a.openCapture()
			if err != nil {
				return err
			}
			defer cs.Close()

			for _, arg := range remove {
				id, err := resolveCapture(cs, arg)
				if err != nil {
					return err
				}
				if err := cs.Delete(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			if len(remove) > 0 {
				return nil
			}

			list, err := cs.Sessions(limit)
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many sessions (0 for all)")
	cmd.Flags().StringSliceVar(&remove, "delete", nil, "Delete the given capture ids")
	return cmd
}

func printSessions(w io.Writer, list []capture.SessionInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSIZE\tCHUNKS\tEXIT\tCOMMAND")
	for _, s := range list {
		duration, exit := "running", "-"
		if s.Finished {
			duration = s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()
			exit = fmt.Sprint(s.ExitCode)
		}
		command := strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dx%d\t%d\t%s\t%s\n",
			s.ID.String()[:8],
			s.StartedAt.Format("2006-01-02 15:04:05"),
			duration,
			s.Cols, s.Rows,
			s.Chunks,
			exit,
			command,
		)
	}
	return tw.Flush()
}
