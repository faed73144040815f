// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: capture/replay.go
// Summary: Replays recorded output into a terminal.

package capture

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/framegrace/vtengine/terminal/parser"
	"github.com/framegrace/vtengine/terminal/screen"
)

// Player consumes a replayed stream.
type Player interface {
	Feed(data []byte)
	Resize(cols, rows int) error
}

// ReplayOptions controls pacing.
type ReplayOptions struct {
	// Speed scales recorded delays; 0 replays as fast as possible.
	Speed float64
	// MaxDelay caps a single pause when Speed > 0.
	MaxDelay time.Duration
}

// Replay feeds the output and resize chunks of a capture to p in order.
// Input chunks are skipped.
func (s *Store) Replay(ctx context.Context, id uuid.UUID, p Player, opts ReplayOptions) error {
	var last time.Time
	return s.Chunks(id, func(c Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.Speed > 0 && !last.IsZero() {
			delay := time.Duration(float64(c.At.Sub(last)) / opts.Speed)
			if opts.MaxDelay > 0 && delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
			if delay > 0 {
				t := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return ctx.Err()
				case <-t.C:
				}
			}
		}
		last = c.At

		switch c.Kind {
		case KindOutput:
			p.Feed(c.Data)
		case KindResize:
			cols, rows, err := ParseResize(c.Data)
			if err != nil {
				s.log.WithError(err).Warn("Capture: skipping bad resize chunk")
				return nil
			}
			return p.Resize(cols, rows)
		}
		return nil
	})
}

// parserPlayer drives a bare parser and its two screens.
type parserPlayer struct {
	p *parser.Parser
}

func (pp parserPlayer) Feed(data []byte) { pp.p.Feed(data) }

func (pp parserPlayer) Resize(cols, rows int) error {
	pp.p.ScreenFor(parser.Primary).Resize(rows, cols)
	pp.p.ScreenFor(parser.Alternate).Resize(rows, cols)
	return nil
}

// Render replays a capture into a fresh parser sized to the recorded
// geometry and returns it.
func (s *Store) Render(ctx context.Context, id uuid.UUID) (*parser.Parser, error) {
	info, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	p := parser.New(
		screen.New(info.Rows, info.Cols),
		screen.New(info.Rows, info.Cols),
		parser.WithLogger(s.log),
	)
	if err := s.Replay(ctx, id, parserPlayer{p: p}, ReplayOptions{}); err != nil {
		return nil, err
	}
	return p, nil
}
