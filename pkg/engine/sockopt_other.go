// SPDX-License-Identifier: MPL-2.0

//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package engine

import (
	"errors"
	"syscall"
)

// errReusePortUnsupported is returned when SO_REUSEPORT is requested on a
// platform without it.
var errReusePortUnsupported = errors.New("SO_REUSEPORT is not supported on this platform")

func control(cfg Config) func(network, address string, c syscall.RawConn) error {
	return func(string, string, syscall.RawConn) error {
		if cfg.ReusePort {
			return errReusePortUnsupported
		}
		return nil
	}
}
