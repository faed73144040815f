// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/eventloop/loop.go
// Summary: Single-goroutine readiness loop over file descriptors, posted
//          closures and one-shot timers.
// Usage: Register descriptors and timers from the loop goroutine (or before
//        Run); Post and Wakeup are safe from any goroutine.
// Notes: Everything the loop calls runs on the goroutine executing Run or
//        RunOnce, so state touched only from callbacks needs no locking.

package eventloop

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/framegrace/vtengine/internal/logging"
)

// ErrClosed is returned by operations on a closed loop.
var ErrClosed = errors.New("event loop closed")

// Loop multiplexes readiness notifications on one goroutine.
type Loop struct {
	log logrus.FieldLogger

	regs   []*Registration
	timers timerHeap
	pfds   []unix.PollFd
	ready  []*Registration

	mu     sync.Mutex
	posted []func()
	closed bool

	wakeR, wakeW int
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(lp *Loop) { lp.log = l }
}

// New creates a loop with its wakeup pipe.
func New(opts ...Option) (*Loop, error) {
	p, err := wakePipe()
	if err != nil {
		return nil, fmt.Errorf("wakeup pipe: %w", err)
	}
	l := &Loop{wakeR: p[0], wakeW: p[1], log: logging.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.WithField("component", "eventloop")
	return l, nil
}

// Registration is a descriptor watched for read readiness.
type Registration struct {
	loop    *Loop
	fd      int
	fn      func()
	enabled bool
	closed  bool
}

// Register watches fd for read readiness (including hangup and error) and
// calls fn on the loop goroutine while the registration is enabled.
func (l *Loop) Register(fd int, fn func()) (*Registration, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}
	if fd < 0 {
		return nil, fmt.Errorf("register: invalid descriptor %d", fd)
	}
	r := &Registration{loop: l, fd: fd, fn: fn, enabled: true}
	l.regs = append(l.regs, r)
	return r, nil
}

// Fd returns the watched descriptor.
func (r *Registration) Fd() int { return r.fd }

// Enabled reports whether readiness is being delivered.
func (r *Registration) Enabled() bool { return r.enabled && !r.closed }

// SetEnabled pauses or resumes delivery.
func (r *Registration) SetEnabled(on bool) {
	if !r.closed {
		r.enabled = on
	}
}

// Close removes the registration. The descriptor itself is not closed.
func (r *Registration) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.enabled = false
	regs := r.loop.regs
	for i, other := range regs {
		if other == r {
			r.loop.regs = append(regs[:i], regs[i+1:]...)
			break
		}
	}
}

// Post queues fn to run on the loop goroutine and wakes the loop.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.Wakeup()
	return nil
}

// Wakeup interrupts a blocked RunOnce.
func (l *Loop) Wakeup() {
	_, err := unix.Write(l.wakeW, []byte{1})
	if err != nil && !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EBADF) {
		l.log.WithError(err).Warn("EventLoop: wakeup failed")
	}
}

// After schedules fn to run once on the loop goroutine after d.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := &Timer{when: time.Now().Add(d), fn: fn}
	heap.Push(&l.timers, t)
	return t
}

// Run processes events until ctx is done or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, l.Wakeup)
	defer stop()
	for ctx.Err() == nil {
		if err := l.RunOnce(-1); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
	}
	return ctx.Err()
}

// RunOnce waits up to timeout (forever when negative) for readiness, then
// dispatches ready descriptors, due timers and posted closures.
func (l *Loop) RunOnce(timeout time.Duration) error {
	if l.isClosed() {
		return ErrClosed
	}

	wait := l.pollTimeout(timeout)
	l.pfds = append(l.pfds[:0], unix.PollFd{Fd: int32(l.wakeR), Events: unix.POLLIN})
	l.ready = l.ready[:0]
	for _, r := range l.regs {
		if r.enabled {
			l.pfds = append(l.pfds, unix.PollFd{Fd: int32(r.fd), Events: unix.POLLIN})
			l.ready = append(l.ready, r)
		}
	}

	n, err := unix.Poll(l.pfds, wait)
	if err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("poll: %w", err)
	}
	if n > 0 {
		if l.pfds[0].Revents != 0 {
			l.drainWakeup()
		}
		for i, r := range l.ready {
			rev := l.pfds[i+1].Revents
			if rev == 0 || !r.enabled {
				continue
			}
			if rev&unix.POLLNVAL != 0 {
				l.log.WithField("fd", r.fd).Warn("EventLoop: descriptor no longer valid, disabling")
				r.enabled = false
				continue
			}
			r.fn()
		}
	}

	l.runTimers()
	l.runPosted()
	return nil
}

// pollTimeout converts timeout into poll milliseconds, shortened by pending
// work and timers.
func (l *Loop) pollTimeout(timeout time.Duration) int {
	l.mu.Lock()
	pending := len(l.posted) > 0
	l.mu.Unlock()
	if pending {
		return 0
	}
	if next, ok := l.timers.next(); ok {
		until := max(time.Until(next), 0)
		if timeout < 0 || until < timeout {
			timeout = until
		}
	}
	if timeout < 0 {
		return -1
	}
	// Round up so a timer is never polled for early and spun on.
	return int((timeout + time.Millisecond - 1) / time.Millisecond)
}

func (l *Loop) drainWakeup() {
	var buf [64]byte
	for {
		n, err := unix.Read(l.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (l *Loop) runTimers() {
	now := time.Now()
	for {
		t, ok := l.timers.peek()
		if !ok || t.when.After(now) {
			return
		}
		heap.Pop(&l.timers)
		if !t.stopped {
			t.fired = true
			t.fn()
		}
	}
}

func (l *Loop) runPosted() {
	l.mu.Lock()
	work := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range work {
		fn()
	}
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close releases the wakeup pipe. Registrations are dropped; their
// descriptors stay open.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.posted = nil
	l.mu.Unlock()

	l.regs = nil
	err := unix.Close(l.wakeR)
	if werr := unix.Close(l.wakeW); err == nil {
		err = werr
	}
	return err
}
