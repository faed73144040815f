// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: capture/recorder.go
// Summary: Per-session recorder feeding the store's batch writer.
// Usage: Begin a recording when a session starts; call Output, Input and
//        Resize as events happen and Finish with the exit status.
// Notes: Recorder methods are called from the event loop goroutine; payloads
//        are copied before they are queued.

package capture

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Recorder appends chunks to one capture.
type Recorder struct {
	store    *Store
	id       uuid.UUID
	seq      int64
	dropped  int
	finished bool
	now      func() time.Time
	log      logrus.FieldLogger
}

// Begin creates a capture row and returns its recorder.
func (s *Store) Begin(command string, args []string, cols, rows int) (*Recorder, error) {
	r := &Recorder{store: s, id: uuid.New(), now: time.Now}
	info := SessionInfo{
		ID:        r.id,
		Command:   command,
		Args:      args,
		Cols:      cols,
		Rows:      rows,
		StartedAt: r.now(),
	}
	if err := s.insertSession(info); err != nil {
		return nil, err
	}
	r.log = s.log.WithField("capture", r.id.String())
	r.log.WithField("command", command).Debug("Capture: recording started")
	return r, nil
}

// ID returns the capture id.
func (r *Recorder) ID() uuid.UUID { return r.id }

// Output records bytes read from the child.
func (r *Recorder) Output(b []byte) { r.record(KindOutput, b) }

// Input records bytes written to the child.
func (r *Recorder) Input(b []byte) { r.record(KindInput, b) }

// Resize records a geometry change.
func (r *Recorder) Resize(cols, rows int) {
	r.record(KindResize, []byte(strconv.Itoa(cols)+"x"+strconv.Itoa(rows)))
}

// Finish marks the capture complete with the child's exit status. Later
// calls are ignored.
func (r *Recorder) Finish(code int) error {
	if r.finished {
		return nil
	}
	r.finished = true
	if r.dropped > 0 {
		r.log.WithField("dropped", r.dropped).Warn("Capture: chunks dropped after store close")
	}
	return r.store.finishSession(r.id, r.now(), code)
}

func (r *Recorder) record(kind Kind, b []byte) {
	if r.finished || len(b) == 0 {
		return
	}
	r.seq++
	c := Chunk{
		Seq:  r.seq,
		At:   r.now(),
		Kind: kind,
		Data: append([]byte(nil), b...),
	}
	if !r.store.enqueue(r.id.String(), c) {
		r.dropped++
	}
}

// ParseResize decodes a resize chunk payload.
func ParseResize(data []byte) (cols, rows int, err error) {
	c, rs, ok := strings.Cut(string(data), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resize payload %q", data)
	}
	if cols, err = strconv.Atoi(c); err != nil {
		return 0, 0, fmt.Errorf("resize payload %q: %w", data, err)
	}
	if rows, err = strconv.Atoi(rs); err != nil {
		return 0, 0, fmt.Errorf("resize payload %q: %w", data, err)
	}
	return cols, rows, nil
}
