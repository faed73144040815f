// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/run.go
// Summary: "run": hosts an emulator in a tcell view.
// Notes: tcell events are read on their own goroutine and posted to the
//        event loop; everything touching the emulator runs on the loop.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/framegrace/vtengine/config"
	"github.com/framegrace/vtengine/internal/eventloop"
	"github.com/framegrace/vtengine/terminal"
	"github.com/framegrace/vtengine/terminal/parser"
)

// frameDelay coalesces bursts of output into one redraw.
const frameDelay = 8 * time.Millisecond

type runOptions struct {
	capture bool
}

// exitCodeError carries the child's exit status out of a command.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string { return fmt.Sprintf("program exited with status %d", e.code) }

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [-- program [args...]]",
		Short: "Run a program inside the vtengine view",
		Long: `Run the configured shell, or the given program, on a pseudo-terminal and
display the decoded screen. The shell is restarted when the configuration
file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.capture, "capture", false, "Record the session even when capture is disabled in the configuration")
	return cmd
}

func runView(ctx context.Context, args []string, opts runOptions) error {
	a, err := loadApp(true)
	if err != nil {
		return err
	}
	log := a.log.WithField("component", "run")

	host, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open host screen: %w", err)
	}
	if err := host.Init(); err != nil {
		return fmt.Errorf("init host screen: %w", err)
	}
	defer host.Fini()
	host.EnablePaste()
	host.SetStyle(tcell.StyleDefault)
	cols, rows := host.Size()

	loop, err := eventloop.New(eventloop.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer loop.Close()

	emuOpts := []terminal.Option{
		terminal.WithLogger(a.log),
		terminal.WithSize(cols, rows),
		terminal.WithEnv(a.cfg.Environ(os.Environ())),
		terminal.WithBellHandler(func() { host.Beep() }),
		terminal.WithClipboardHandler(func(sel string, data []byte) {
			if err := clipboard.WriteAll(string(data)); err != nil {
				log.WithError(err).WithField("selection", sel).Debug("Run: clipboard write failed")
			}
		}),
	}
	if a.cfg.Capture.Enabled || opts.capture {
		cs, err := a.openCapture()
		if err != nil {
			return err
		}
		defer cs.Close()
		emuOpts = append(emuOpts, terminal.WithRecorder(recorderFactory(cs)))
	}
	emu := terminal.New(loop, emuOpts...)
	v := newView(host, emu)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	exitCode := 0
	emu.OnFinished(func(code int) {
		exitCode = code
		cancel()
	})
	drawPending := false
	emu.OnChange(func() {
		if drawPending {
			return
		}
		drawPending = true
		loop.After(frameDelay, func() {
			drawPending = false
			v.draw()
		})
	})

	if len(args) > 0 {
		err = emu.Start(args[0], args[1:])
	} else {
		err = emu.ApplyConfig(a.cfg)
		if w, werr := a.store.Watch(func(cfg config.Config) {
			loop.Post(func() {
				if err := emu.ApplyConfig(cfg); err != nil {
					log.WithError(err).Warn("Run: applying reloaded configuration failed")
				}
			})
		}); werr != nil {
			log.WithError(werr).Warn("Run: configuration watching disabled")
		} else {
			defer w.Close()
		}
	}
	if err != nil {
		return err
	}
	defer emu.Stop()

	in := &inputState{emu: emu, view: v, host: host, log: log}
	go func() {
		for {
			ev := host.PollEvent()
			if ev == nil {
				return
			}
			if loop.Post(func() { in.handle(ev) }) != nil {
				return
			}
		}
	}()

	v.draw()
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if exitCode != 0 {
		return exitCodeError{code: exitCode}
	}
	return nil
}

// inputState routes host events to the emulator.
type inputState struct {
	emu      *terminal.Emulator
	view     *view
	host     tcell.Screen
	log      logrus.FieldLogger
	pasting  bool
	pasteBuf []byte
}

func (in *inputState) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		cols, rows := ev.Size()
		if err := in.emu.Resize(cols, rows); err != nil {
			in.log.WithError(err).Warn("Run: resize failed")
		}
		in.host.Sync()
		in.view.invalidate()
		in.view.draw()
	case *tcell.EventPaste:
		if ev.Start() {
			in.pasting = true
			in.pasteBuf = in.pasteBuf[:0]
			return
		}
		in.pasting = false
		if err := in.emu.Paste(in.pasteBuf); err != nil {
			in.log.WithError(err).Warn("Run: paste failed")
		}
	case *tcell.EventKey:
		if in.pasting {
			in.pasteBuf = append(in.pasteBuf, encodeKey(ev, parser.Modes{})...)
			return
		}
		if b := encodeKey(ev, in.emu.Modes()); b != nil {
			in.emu.Write(b)
		}
	}
}
