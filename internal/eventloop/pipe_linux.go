// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/eventloop/pipe_linux.go
// Summary: Wakeup pipe created close-on-exec and non-blocking in one call.

package eventloop

import "golang.org/x/sys/unix"

func wakePipe() ([2]int, error) {
	var p [2]int
	err := unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK)
	return p, err
}
