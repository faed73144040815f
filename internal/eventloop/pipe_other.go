// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/eventloop/pipe_other.go
// Summary: Wakeup pipe for platforms without pipe2.
// Notes: ForkLock closes the window between pipe and FD_CLOEXEC for children
//        started through os/exec.

//go:build !linux

package eventloop

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func wakePipe() ([2]int, error) {
	var p [2]int
	syscall.ForkLock.RLock()
	err := unix.Pipe(p[:])
	if err == nil {
		unix.CloseOnExec(p[0])
		unix.CloseOnExec(p[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return p, err
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return p, err
		}
	}
	return p, nil
}
