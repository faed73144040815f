// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/session/spawner.go
// Summary: Platform process interfaces and the pty-backed default spawner.
// Notes: A program that cannot be executed still yields a terminal whose
//        slave side is closed and a process that reports status 127, so
//        exec failure reaches the session as an ordinary exit.

package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// ExecFailedCode is the exit status reported when the program never ran.
const ExecFailedCode = 127

// Command describes the child to spawn.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
	Cols int
	Rows int
}

// Terminal is the controlling side of a pseudo-terminal.
type Terminal interface {
	io.ReadWriteCloser
	// Fd is the descriptor watched for read readiness.
	Fd() int
	Resize(cols, rows int) error
}

// Process is a spawned child.
type Process interface {
	Pid() int
	// TryWait polls for exit without blocking. code is -1 when the exit
	// status cannot be determined.
	TryWait() (exited bool, code int, err error)
	Signal(sig unix.Signal) error
	Kill() error
	// Wait blocks until the child is reaped.
	Wait() (code int, err error)
}

// Spawner starts a child attached to a new pseudo-terminal.
type Spawner interface {
	Spawn(cmd Command) (Terminal, Process, error)
}

// PTYSpawner is the default Spawner.
type PTYSpawner struct{}

// Spawn allocates a pty pair, sizes it and starts cmd as a session leader
// with the slave as its controlling terminal.
func (PTYSpawner) Spawn(c Command) (Terminal, Process, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open pty: %w", ErrStartFailed, err)
	}
	defer slave.Close()

	if err := pty.Setsize(master, winsize(c.Cols, c.Rows)); err != nil {
		master.Close()
		return nil, nil, fmt.Errorf("%w: set pty size: %w", ErrStartFailed, err)
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	term := &ptyTerminal{f: master, fd: int(master.Fd())}
	if err := cmd.Start(); err != nil {
		return term, &failedProcess{err: err}, nil
	}
	pid := cmd.Process.Pid
	// Reaped with Wait4; drop the handle so no pidfd stays open.
	cmd.Process.Release()
	return term, &unixProcess{pid: pid}, nil
}

func winsize(cols, rows int) *pty.Winsize {
	return &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
}

type ptyTerminal struct {
	f  *os.File
	fd int
}

func (t *ptyTerminal) Read(p []byte) (int, error)  { return t.f.Read(p) }
func (t *ptyTerminal) Write(p []byte) (int, error) { return t.f.Write(p) }
func (t *ptyTerminal) Close() error                { return t.f.Close() }
func (t *ptyTerminal) Fd() int                     { return t.fd }

func (t *ptyTerminal) Resize(cols, rows int) error {
	return pty.Setsize(t.f, winsize(cols, rows))
}

// unixProcess reaps its child with wait4 so the exit status is observable
// without blocking.
type unixProcess struct {
	pid    int
	reaped bool
	code   int
}

func (p *unixProcess) Pid() int { return p.pid }

func (p *unixProcess) TryWait() (bool, int, error) {
	if p.reaped {
		return true, p.code, nil
	}
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(p.pid, &ws, unix.WNOHANG, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			p.markReaped(-1)
			return true, -1, nil
		case err != nil:
			return false, -1, err
		case wpid == 0:
			return false, 0, nil
		}
		p.markReaped(exitCode(ws))
		return true, p.code, nil
	}
}

func (p *unixProcess) Wait() (int, error) {
	if p.reaped {
		return p.code, nil
	}
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(p.pid, &ws, 0, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			p.markReaped(-1)
			return -1, nil
		case err != nil:
			return -1, err
		}
		p.markReaped(exitCode(ws))
		return p.code, nil
	}
}

func (p *unixProcess) Signal(sig unix.Signal) error {
	if p.reaped {
		return nil
	}
	if err := unix.Kill(p.pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func (p *unixProcess) Kill() error { return p.Signal(unix.SIGKILL) }

func (p *unixProcess) markReaped(code int) {
	p.reaped = true
	p.code = code
}

func exitCode(ws unix.WaitStatus) int {
	if ws.Exited() {
		return ws.ExitStatus()
	}
	return -1
}

// failedProcess stands in for a program that could not be executed.
type failedProcess struct {
	err error
}

func (p *failedProcess) Pid() int                    { return -1 }
func (p *failedProcess) TryWait() (bool, int, error) { return true, ExecFailedCode, nil }
func (p *failedProcess) Signal(unix.Signal) error    { return nil }
func (p *failedProcess) Kill() error                 { return nil }
func (p *failedProcess) Wait() (int, error)          { return ExecFailedCode, nil }
func (p *failedProcess) Unwrap() error               { return p.err }
