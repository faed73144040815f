// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/record.go
// Summary: "record": raw passthrough between the host terminal and a child,
//          capturing the byte streams.
// Notes: The host terminal does the rendering and answers the child's
//        queries, so no parser sits in the path.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/framegrace/vtengine/capture"
	"github.com/framegrace/vtengine/internal/eventloop"
	"github.com/framegrace/vtengine/terminal/session"
)

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record [-- program [args...]]",
		Short: "Record a session in raw passthrough mode",
		Long: `Run the configured shell, or the given program, directly on the host
terminal and store everything it prints, everything typed and every resize
in the capture database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), args)
		},
	}
}

func runRecord(ctx context.Context, args []string) error {
	inFd, outFd := int(os.Stdin.Fd()), int(os.Stdout.Fd())
	if !term.IsTerminal(inFd) || !term.IsTerminal(outFd) {
		return errors.New("record needs an interactive terminal")
	}

	a, err := loadApp(true)
	if err != nil {
		return err
	}
	log := a.log.WithField("component", "record")

	cs, err := a.openCapture()
	if err != nil {
		return err
	}
	defer cs.Close()

	cols, rows, err := term.GetSize(outFd)
	if err != nil {
		return fmt.Errorf("host terminal size: %w", err)
	}

	command, cargs := a.cfg.Shell.Argv()
	if len(args) > 0 {
		command, cargs = args[0], args[1:]
	}
	rec, err := cs.Begin(command, cargs, cols, rows)
	if err != nil {
		return err
	}
	// No-op once the child's exit code has been recorded.
	defer rec.Finish(-1)

	loop, err := eventloop.New(eventloop.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer loop.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exitCode := 0
	sess := session.New(loop,
		session.WithLogger(a.log),
		session.WithSize(cols, rows),
		session.WithEnv(a.cfg.Environ(os.Environ())),
		session.WithDataHandler(func(b []byte) {
			rec.Output(b)
			if _, err := os.Stdout.Write(b); err != nil {
				log.WithError(err).Warn("Record: host write failed")
			}
		}),
		session.WithFinishedHandler(func(code int) {
			exitCode = code
			cancel()
		}),
	)

	state, err := term.MakeRaw(inFd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(inFd, state)

	if err := sess.Start(command, cargs); err != nil {
		return err
	}
	defer sess.Stop()

	if err := forwardInput(loop, inFd, rec, sess); err != nil {
		return err
	}

	stopResize := watchResize(loop, func() {
		c, r, err := term.GetSize(outFd)
		if err != nil {
			return
		}
		rec.Resize(c, r)
		if err := sess.Resize(c, r); err != nil {
			log.WithError(err).Warn("Record: resize failed")
		}
	})
	defer stopResize()

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := rec.Finish(exitCode); err != nil {
		log.WithError(err).Warn("Record: finishing capture failed")
	}
	term.Restore(inFd, state)
	fmt.Fprintf(os.Stderr, "capture %s saved to %s\n", rec.ID(), cs.Path())
	if exitCode != 0 {
		return exitCodeError{code: exitCode}
	}
	return nil
}

// watchResize posts onResize to the loop for every SIGWINCH until stop runs.
// stop returns once the forwarding goroutine has exited.
func watchResize(loop *eventloop.Loop, onResize func()) (stop func()) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range winch {
			loop.Post(onResize)
		}
	}()
	return func() {
		signal.Stop(winch)
		close(winch)
		<-done
	}
}

// forwardInput copies host keystrokes to the child from the event loop.
func forwardInput(loop *eventloop.Loop, fd int, rec *capture.Recorder, sess *session.Session) error {
	buf := make([]byte, 4096)
	var reg *eventloop.Registration
	reg, err := loop.Register(fd, func() {
		n, err := unix.Read(fd, buf)
		switch {
		case n > 0:
			rec.Input(buf[:n])
			sess.Write(buf[:n])
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		default:
			// End of input: stop watching, the child keeps running.
			reg.SetEnabled(false)
		}
	})
	return err
}
