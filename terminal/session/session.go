// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/session/session.go
// Summary: Child process attached to a pseudo-terminal, driven by the event
//          loop.
// Usage: Create with New, Start a program, receive output through the data
//        handler and the exit status through the finished handler.
// Notes: All methods and handlers run on the loop goroutine. A read of zero
//        bytes while the child is still alive pauses the registration and
//        rechecks after exitRecheckDelay; output arriving in that window is
//        delivered once the registration resumes.

package session

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/framegrace/vtengine/internal/eventloop"
	"github.com/framegrace/vtengine/internal/logging"
)

const (
	// DefaultCommand runs when Start is given no program.
	DefaultCommand = "/bin/sh"
	// DefaultCols and DefaultRows are the initial pty geometry.
	DefaultCols = 80
	DefaultRows = 24

	readChunk        = 4096
	exitRecheckDelay = 50 * time.Millisecond
)

var (
	// ErrSessionActive is returned by Start while a child is running.
	ErrSessionActive = errors.New("session already active")
	// ErrStartFailed wraps pty allocation failures.
	ErrStartFailed = errors.New("session start failed")
	// ErrInactive is returned by operations that need a running child.
	ErrInactive = errors.New("session not active")
)

// Session owns one child process, its pty master and its loop registration.
type Session struct {
	loop    *eventloop.Loop
	spawner Spawner
	log     logrus.FieldLogger
	env     []string
	dir     string

	onData     func([]byte)
	onFinished func(code int)

	cols, rows int

	term    Terminal
	proc    Process
	reg     *eventloop.Registration
	recheck *eventloop.Timer
	command string
	buf     []byte
}

// Option configures a Session.
type Option func(*Session)

// WithSpawner replaces the pty spawner.
func WithSpawner(sp Spawner) Option {
	return func(s *Session) { s.spawner = sp }
}

// WithLogger sets the session logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithDataHandler receives every chunk read from the child, undecoded. The
// slice is only valid for the duration of the call.
func WithDataHandler(fn func([]byte)) Option {
	return func(s *Session) { s.onData = fn }
}

// WithFinishedHandler is called once per child with its exit status, or -1
// when it cannot be determined.
func WithFinishedHandler(fn func(code int)) Option {
	return func(s *Session) { s.onFinished = fn }
}

// WithEnv sets the child environment. The process environment is used when
// unset.
func WithEnv(env []string) Option {
	return func(s *Session) { s.env = append([]string(nil), env...) }
}

// WithDir sets the child working directory.
func WithDir(dir string) Option {
	return func(s *Session) { s.dir = dir }
}

// WithSize sets the initial geometry.
func WithSize(cols, rows int) Option {
	return func(s *Session) {
		if cols > 0 && rows > 0 {
			s.cols, s.rows = cols, rows
		}
	}
}

// New creates an inactive session bound to loop.
func New(loop *eventloop.Loop, opts ...Option) *Session {
	s := &Session{
		loop:    loop,
		spawner: PTYSpawner{},
		log:     logging.Discard(),
		cols:    DefaultCols,
		rows:    DefaultRows,
		buf:     make([]byte, readChunk),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "session")
	return s
}

// Active reports whether a child is attached.
func (s *Session) Active() bool { return s.term != nil }

// Pid returns the child pid, or -1 when inactive.
func (s *Session) Pid() int {
	if s.proc == nil {
		return -1
	}
	return s.proc.Pid()
}

// Size returns the current geometry.
func (s *Session) Size() (cols, rows int) { return s.cols, s.rows }

// Start spawns command with args. An empty command runs DefaultCommand, and
// an empty argument list becomes the login flag "-l".
func (s *Session) Start(command string, args []string) error {
	if s.Active() {
		return ErrSessionActive
	}
	if command == "" {
		command = DefaultCommand
	}
	if len(args) == 0 {
		args = []string{"-l"}
	}
	env := s.env
	if env == nil {
		env = os.Environ()
	}

	term, proc, err := s.spawner.Spawn(Command{
		Path: command,
		Args: args,
		Env:  env,
		Dir:  s.dir,
		Cols: s.cols,
		Rows: s.rows,
	})
	if err != nil {
		s.log.WithError(err).WithField("command", command).Warn("Session: start failed")
		if !errors.Is(err, ErrStartFailed) {
			err = fmt.Errorf("%w: %w", ErrStartFailed, err)
		}
		return err
	}

	reg, err := s.loop.Register(term.Fd(), s.onReadable)
	if err != nil {
		proc.Kill()
		proc.Wait()
		term.Close()
		s.log.WithError(err).WithField("command", command).Warn("Session: start failed")
		return fmt.Errorf("%w: register pty: %w", ErrStartFailed, err)
	}

	s.term, s.proc, s.reg, s.command = term, proc, reg, command
	if fp, ok := proc.(*failedProcess); ok {
		s.log.WithError(fp.err).WithField("command", command).Warn("Session: exec failed")
		return nil
	}
	s.log.WithFields(logrus.Fields{
		"command": command,
		"args":    args,
		"pid":     proc.Pid(),
		"cols":    s.cols,
		"rows":    s.rows,
	}).Info("Session: started")
	return nil
}

// Write sends b to the child. It is a no-op without a child. Failures are
// logged and returned but never tear the session down.
func (s *Session) Write(b []byte) (int, error) {
	if !s.Active() || len(b) == 0 {
		return 0, nil
	}
	n, err := s.term.Write(b)
	if err != nil {
		s.log.WithError(err).WithField("bytes", len(b)).Warn("Session: write failed")
		return n, fmt.Errorf("session write: %w", err)
	}
	return n, nil
}

// Resize records the geometry and, with a child attached, applies it to the
// pty and signals SIGWINCH.
func (s *Session) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("session resize: invalid size %dx%d", cols, rows)
	}
	s.cols, s.rows = cols, rows
	if !s.Active() {
		return nil
	}
	if err := s.term.Resize(cols, rows); err != nil {
		return fmt.Errorf("session resize: %w", err)
	}
	if err := s.proc.Signal(unix.SIGWINCH); err != nil {
		return fmt.Errorf("session resize: %w", err)
	}
	return nil
}

// Signal delivers sig to the child.
func (s *Session) Signal(sig unix.Signal) error {
	if !s.Active() {
		return ErrInactive
	}
	return s.proc.Signal(sig)
}

// Stop disables notification, closes the master, kills the child and waits
// for it. No finished event is emitted.
func (s *Session) Stop() error {
	if !s.Active() {
		return nil
	}
	proc := s.proc
	closeErr := s.teardown()
	if err := proc.Kill(); err != nil {
		s.log.WithError(err).Warn("Session: kill failed")
	}
	code, err := proc.Wait()
	if err != nil {
		return fmt.Errorf("session stop: %w", err)
	}
	s.log.WithFields(logrus.Fields{"pid": proc.Pid(), "code": code}).Info("Session: stopped")
	return closeErr
}

func (s *Session) onReadable() {
	n, err := s.term.Read(s.buf)
	if n > 0 {
		if s.onData != nil {
			s.onData(s.buf[:n])
		}
		return
	}
	s.checkExit(err)
}

// checkExit runs after a read returned no data.
func (s *Session) checkExit(readErr error) {
	exited, code, err := s.proc.TryWait()
	if err != nil {
		s.log.WithError(err).Warn("Session: wait failed")
		exited, code = true, -1
	}
	if !exited {
		s.log.WithError(readErr).Debug("Session: no data but child alive, rechecking")
		s.reg.SetEnabled(false)
		reg := s.reg
		s.recheck = s.loop.After(exitRecheckDelay, func() {
			s.recheck = nil
			reg.SetEnabled(true)
		})
		return
	}

	pid := s.proc.Pid()
	if err := s.teardown(); err != nil {
		s.log.WithError(err).Debug("Session: close pty")
	}
	s.log.WithFields(logrus.Fields{
		"command": s.command,
		"pid":     pid,
		"code":    code,
	}).Info("Session: finished")
	if s.onFinished != nil {
		s.onFinished(code)
	}
}

// teardown releases the registration and descriptor. The process handle is
// dropped; callers that still need it must hold their own reference.
func (s *Session) teardown() error {
	if s.recheck != nil {
		s.recheck.Stop()
		s.recheck = nil
	}
	s.reg.Close()
	err := s.term.Close()
	s.term, s.proc, s.reg = nil, nil, nil
	return err
}
