// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/emulator.go
// Summary: Emulator ties a pty session, the escape-sequence parser and the
//          primary/alternate screens together.
// Usage: Create with New on an event loop, Start a program, read the screen
//        from OnChange callbacks and send user input with Write or Paste.
// Notes: Every method must run on the loop goroutine. Other goroutines hand
//        work over with Loop.Post.

package terminal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/framegrace/vtengine/config"
	"github.com/framegrace/vtengine/internal/eventloop"
	"github.com/framegrace/vtengine/internal/logging"
	"github.com/framegrace/vtengine/terminal/parser"
	"github.com/framegrace/vtengine/terminal/screen"
	"github.com/framegrace/vtengine/terminal/session"
)

const (
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// Recorder receives a copy of the session traffic.
type Recorder interface {
	Output(b []byte)
	Input(b []byte)
	Resize(cols, rows int)
	Finish(code int) error
}

// RecorderFactory starts a recording for a newly started program.
type RecorderFactory func(command string, args []string, cols, rows int) (Recorder, error)

// Snapshot is a copy of the visible state.
type Snapshot struct {
	Cols, Rows    int
	Lines         []string
	CursorRow     int
	CursorCol     int
	CursorVisible bool
	Screen        parser.ScreenID
	Title         string
}

// Emulator is one terminal: a session, a parser and two screens.
type Emulator struct {
	loop   *eventloop.Loop
	base   logrus.FieldLogger
	log    logrus.FieldLogger
	cols   int
	rows   int
	env    []string
	dir    string
	parser *parser.Parser

	primary   *screen.Buffer
	alternate *screen.Buffer
	session   *session.Session
	spawner   session.Spawner

	newRecorder RecorderFactory
	recorder    Recorder

	command string
	args    []string

	onChange    func()
	onFinished  func(code int)
	onTitle     func(string)
	onBell      func()
	onClipboard func(selection string, data []byte)
	onWorkDir   func(string)
	onDCS       func(parser.DeviceControl)
	workDir     string
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithSpawner replaces the pty spawner.
func WithSpawner(sp session.Spawner) Option {
	return func(e *Emulator) { e.spawner = sp }
}

// WithLogger sets the logger shared by the emulator, parser and session.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Emulator) { e.log = l }
}

// WithSize sets the initial geometry.
func WithSize(cols, rows int) Option {
	return func(e *Emulator) {
		if cols > 0 && rows > 0 {
			e.cols, e.rows = cols, rows
		}
	}
}

// WithEnv sets the child environment.
func WithEnv(env []string) Option {
	return func(e *Emulator) { e.env = append([]string(nil), env...) }
}

// WithDir sets the child working directory.
func WithDir(dir string) Option {
	return func(e *Emulator) { e.dir = dir }
}

// WithRecorder records every started program through fn.
func WithRecorder(fn RecorderFactory) Option {
	return func(e *Emulator) { e.newRecorder = fn }
}

// WithTitleHandler is called when the program sets the window title.
func WithTitleHandler(fn func(string)) Option {
	return func(e *Emulator) { e.onTitle = fn }
}

// WithBellHandler is called on BEL.
func WithBellHandler(fn func()) Option {
	return func(e *Emulator) { e.onBell = fn }
}

// WithClipboardHandler receives OSC 52 clipboard writes.
func WithClipboardHandler(fn func(selection string, data []byte)) Option {
	return func(e *Emulator) { e.onClipboard = fn }
}

// WithWorkingDirHandler is called when the program reports its directory.
func WithWorkingDirHandler(fn func(string)) Option {
	return func(e *Emulator) { e.onWorkDir = fn }
}

// WithDeviceControlHandler receives DCS strings the parser does not answer.
func WithDeviceControlHandler(fn func(parser.DeviceControl)) Option {
	return func(e *Emulator) { e.onDCS = fn }
}

// New creates an emulator on loop. No program runs until Start.
func New(loop *eventloop.Loop, opts ...Option) *Emulator {
	e := &Emulator{
		loop: loop,
		log:  logging.Discard(),
		cols: session.DefaultCols,
		rows: session.DefaultRows,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.base = e.log
	e.log = e.base.WithField("component", "emulator")

	e.primary = screen.New(e.rows, e.cols)
	e.alternate = screen.New(e.rows, e.cols)
	e.parser = parser.New(e.primary, e.alternate,
		parser.WithLogger(e.base),
		parser.WithResponder(e.respond),
		parser.WithTitleHandler(e.titleChanged),
		parser.WithBellHandler(func() {
			if e.onBell != nil {
				e.onBell()
			}
		}),
		parser.WithClipboardHandler(func(sel string, data []byte) {
			if e.onClipboard != nil {
				e.onClipboard(sel, data)
			}
		}),
		parser.WithWorkingDirHandler(func(dir string) {
			e.workDir = dir
			if e.onWorkDir != nil {
				e.onWorkDir(dir)
			}
		}),
		parser.WithDeviceControlHandler(func(dc parser.DeviceControl) {
			if e.onDCS != nil {
				e.onDCS(dc)
				return
			}
			e.log.WithField("final", string(rune(dc.Final))).Debug("Emulator: dropping device control string")
		}),
	)
	e.session = e.newSession()
	return e
}

func (e *Emulator) newSession() *session.Session {
	opts := []session.Option{
		session.WithLogger(e.base),
		session.WithSize(e.cols, e.rows),
		session.WithDataHandler(e.output),
		session.WithFinishedHandler(e.finished),
	}
	if e.env != nil {
		opts = append(opts, session.WithEnv(e.env))
	}
	if e.dir != "" {
		opts = append(opts, session.WithDir(e.dir))
	}
	if e.spawner != nil {
		opts = append(opts, session.WithSpawner(e.spawner))
	}
	return session.New(e.loop, opts...)
}

// OnChange registers fn to run after the screen may have changed.
func (e *Emulator) OnChange(fn func()) { e.onChange = fn }

// OnFinished registers fn to run when the program exits on its own.
func (e *Emulator) OnFinished(fn func(code int)) { e.onFinished = fn }

// Start runs command with args. An empty command runs the default shell.
func (e *Emulator) Start(command string, args []string) error {
	if err := e.session.Start(command, args); err != nil {
		return err
	}
	e.command, e.args = command, slices.Clone(args)
	e.beginRecording()
	return nil
}

// ApplyConfig adopts cfg's shell and environment. The program is started
// when none runs and replaced when either changed; the screens are reset
// for the new program.
func (e *Emulator) ApplyConfig(cfg config.Config) error {
	command, args := cfg.Shell.Argv()
	env := cfg.Environ(os.Environ())
	if e.session.Active() && command == e.command && slices.Equal(args, e.args) && slices.Equal(env, e.env) {
		return nil
	}
	e.env = env
	return e.Restart(command, args)
}

// Restart stops the running program, resets the terminal and starts command.
func (e *Emulator) Restart(command string, args []string) error {
	if err := e.Stop(); err != nil {
		e.log.WithError(err).Warn("Emulator: stop before restart failed")
	}
	e.session = e.newSession()
	e.parser.Reset()
	e.log.WithFields(logrus.Fields{"command": command, "args": args}).Info("Emulator: restarting session")
	err := e.Start(command, args)
	e.changed()
	return err
}

// Stop kills the program. No finished callback is made.
func (e *Emulator) Stop() error {
	if !e.session.Active() {
		return nil
	}
	err := e.session.Stop()
	e.endRecording(-1)
	return err
}

// Running reports whether a program is attached.
func (e *Emulator) Running() bool { return e.session.Active() }

// Pid returns the program's pid, or -1.
func (e *Emulator) Pid() int { return e.session.Pid() }

// Feed processes program output without a session, as when replaying.
func (e *Emulator) Feed(data []byte) {
	e.parser.Feed(data)
	e.changed()
}

// Write sends user input to the program.
func (e *Emulator) Write(b []byte) (int, error) {
	if e.recorder != nil && e.session.Active() {
		e.recorder.Input(b)
	}
	return e.session.Write(b)
}

// Paste sends text as a paste, bracketed when the program enabled mode 2004.
// Embedded end markers are removed so the paste cannot terminate early.
func (e *Emulator) Paste(text []byte) error {
	if !e.parser.Modes().BracketedPaste {
		_, err := e.Write(text)
		return err
	}
	body := bytes.ReplaceAll(text, []byte(pasteEnd), nil)
	buf := make([]byte, 0, len(body)+len(pasteStart)+len(pasteEnd))
	buf = append(buf, pasteStart...)
	buf = append(buf, body...)
	buf = append(buf, pasteEnd...)
	_, err := e.Write(buf)
	return err
}

// Resize changes both screens and the pty geometry.
func (e *Emulator) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("emulator resize: invalid size %dx%d", cols, rows)
	}
	if cols == e.cols && rows == e.rows {
		return nil
	}
	e.cols, e.rows = cols, rows
	e.primary.Resize(rows, cols)
	e.alternate.Resize(rows, cols)
	err := e.session.Resize(cols, rows)
	if e.recorder != nil {
		e.recorder.Resize(cols, rows)
	}
	e.changed()
	return err
}

// Reset performs a full terminal reset.
func (e *Emulator) Reset() {
	e.parser.Reset()
	e.changed()
}

// Size returns the geometry.
func (e *Emulator) Size() (cols, rows int) { return e.cols, e.rows }

// ActiveScreen returns which screen is shown.
func (e *Emulator) ActiveScreen() parser.ScreenID { return e.parser.Active() }

// Modes returns the terminal modes set by the program.
func (e *Emulator) Modes() parser.Modes { return e.parser.Modes() }

// Title returns the window title set by the program.
func (e *Emulator) Title() string { return e.parser.Title() }

// WorkingDir returns the last directory reported through OSC 7.
func (e *Emulator) WorkingDir() string { return e.workDir }

// Text returns the visible screen with trailing blanks trimmed.
func (e *Emulator) Text() string { return e.parser.Screen().Text() }

// Lines returns the visible rows untrimmed.
func (e *Emulator) Lines() []string { return e.parser.Screen().Lines() }

// Cell returns one visible cell.
func (e *Emulator) Cell(row, col int) (screen.Cell, bool) { return e.parser.Screen().Cell(row, col) }

// Row returns a view over one visible row.
func (e *Emulator) Row(row int) (screen.RowView, bool) { return e.parser.Screen().Row(row) }

// Cursor returns the cursor of the visible screen.
func (e *Emulator) Cursor() (row, col int) { return e.parser.Screen().Cursor() }

// DirtyRows returns visible rows changed since ResetDirty.
func (e *Emulator) DirtyRows() []int { return e.parser.Screen().DirtyRows() }

// ResetDirty clears dirty tracking on both screens.
func (e *Emulator) ResetDirty() {
	e.primary.ResetDirty()
	e.alternate.ResetDirty()
}

// Snapshot copies the visible state.
func (e *Emulator) Snapshot() Snapshot {
	s := e.parser.Screen()
	row, col := s.Cursor()
	return Snapshot{
		Cols:          s.Cols(),
		Rows:          s.Rows(),
		Lines:         s.Lines(),
		CursorRow:     row,
		CursorCol:     col,
		CursorVisible: e.parser.Modes().CursorVisible,
		Screen:        e.parser.Active(),
		Title:         e.parser.Title(),
	}
}

func (e *Emulator) output(b []byte) {
	if e.recorder != nil {
		e.recorder.Output(b)
	}
	e.parser.Feed(b)
	e.changed()
}

func (e *Emulator) respond(b []byte) {
	if _, err := e.Write(b); err != nil && !errors.Is(err, session.ErrInactive) {
		e.log.WithError(err).Debug("Emulator: response not delivered")
	}
}

func (e *Emulator) titleChanged(title string) {
	if e.onTitle != nil {
		e.onTitle(title)
	}
}

func (e *Emulator) finished(code int) {
	e.endRecording(code)
	e.log.WithField("code", code).Info("Emulator: program exited")
	e.changed()
	if e.onFinished != nil {
		e.onFinished(code)
	}
}

func (e *Emulator) changed() {
	if e.onChange != nil {
		e.onChange()
	}
}

func (e *Emulator) beginRecording() {
	if e.newRecorder == nil {
		return
	}
	command := e.command
	if command == "" {
		command = session.DefaultCommand
	}
	rec, err := e.newRecorder(command, e.args, e.cols, e.rows)
	if err != nil {
		e.log.WithError(err).Warn("Emulator: capture disabled for this session")
		return
	}
	e.recorder = rec
}

func (e *Emulator) endRecording(code int) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Finish(code); err != nil {
		e.log.WithError(err).Warn("Emulator: finishing capture failed")
	}
	e.recorder = nil
}
