// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/eventloop/timer.go
// Summary: One-shot timers ordered by deadline.

package eventloop

import "time"

// Timer is a pending After callback.
type Timer struct {
	when    time.Time
	fn      func()
	index   int
	stopped bool
	fired   bool
}

// Stop cancels the timer. It reports whether the callback was prevented.
func (t *Timer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	t.index = -1
	return t
}

func (h timerHeap) peek() (*Timer, bool) {
	if len(h) == 0 {
		return nil, false
	}
	return h[0], true
}

// next returns the earliest deadline of a live timer.
func (h timerHeap) next() (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)
	for _, t := range h {
		if t.stopped {
			continue
		}
		if !found || t.when.Before(best) {
			best, found = t.when, true
		}
	}
	return best, found
}
