// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/replay.go
// Summary: "replay": plays a capture back on the host terminal or prints the
//          final screen.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/framegrace/vtengine/capture"
)

func newReplayCmd() *cobra.Command {
	var (
		speed    float64
		maxDelay time.Duration
		text     bool
	)
	cmd := &cobra.Command{
		Use:   "replay <id>",
		Short: "Replay a recorded session",
		Long: `Replay a capture. By default the recorded output is written to this
terminal with the original timing. With --text the capture is decoded by the
emulator and only the final screen is printed.

The id may be abbreviated to any unique prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(false)
			if err != nil {
				return err
			}
			cs, err := a.openCapture()
			if err != nil {
				return err
			}
			defer cs.Close()

			id, err := resolveCapture(cs, args[0])
			if err != nil {
				return err
			}
			if text {
				return printFinalScreen(cmd.Context(), cs, id, cmd.OutOrStdout())
			}
			opts := capture.ReplayOptions{Speed: speed, MaxDelay: maxDelay}
			return cs.Replay(cmd.Context(), id, rawPlayer{w: os.Stdout}, opts)
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 1, "Playback speed factor (0 for no delays)")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", 2*time.Second, "Longest pause between chunks")
	cmd.Flags().BoolVar(&text, "text", false, "Print the final screen instead of playing the capture")
	return cmd
}

// rawPlayer writes recorded output straight to the host terminal.
type rawPlayer struct {
	w io.Writer
}

func (p rawPlayer) Feed(data []byte) { p.w.Write(data) }

func (p rawPlayer) Resize(cols, rows int) error { return nil }

func printFinalScreen(ctx context.Context, cs *capture.Store, id uuid.UUID, w io.Writer) error {
	p, err := cs.Render(ctx, id)
	if err != nil {
		return err
	}
	if title := p.Title(); title != "" {
		fmt.Fprintf(w, "# %s\n", title)
	}
	fmt.Fprintln(w, strings.TrimRight(p.Screen().Text(), "\n"))
	return nil
}

// resolveCapture accepts a full id or a unique prefix of one.
func resolveCapture(cs *capture.Store, arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	all, err := cs.Sessions(0)
	if err != nil {
		return uuid.Nil, err
	}
	var matches []uuid.UUID
	for _, s := range all {
		if strings.HasPrefix(s.ID.String(), strings.ToLower(arg)) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("%s: %w", arg, capture.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, fmt.Errorf("capture id %q is ambiguous (%d matches)", arg, len(matches))
	}
}
