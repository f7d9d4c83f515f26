// SPDX-License-Identifier: MPL-2.0

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package engine

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// control returns a ListenConfig.Control hook applying the socket options of cfg.
func control(cfg Config) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if cfg.ReuseAddr {
				if opErr = setBool(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR); opErr != nil {
					opErr = fmt.Errorf("set SO_REUSEADDR: %w", opErr)
					return
				}
			}
			if cfg.ReusePort {
				if opErr = setBool(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT); opErr != nil {
					opErr = fmt.Errorf("set SO_REUSEPORT: %w", opErr)
				}
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

func setBool(fd, level, opt int) error {
	return unix.SetsockoptInt(fd, level, opt, 1)
}
