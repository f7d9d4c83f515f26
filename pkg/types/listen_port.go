// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

const maxListenPort = 1<<16 - 1

// ErrInvalidListenPort is the sentinel error wrapped by InvalidListenPortError.
var ErrInvalidListenPort = errors.New("invalid listen port")

type (
	// ListenPort is the TCP port a server binds. Port 0 lets the kernel pick
	// a free port; the bound port is then reported by the server's Addr.
	ListenPort int

	// InvalidListenPortError reports a port outside 0-65535.
	InvalidListenPortError struct {
		Value ListenPort
	}
)

// ParseListenPort parses a decimal port such as the port half of "host:port".
func ParseListenPort(s string) (ListenPort, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidListenPort, s)
	}
	p := ListenPort(n)
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return p, nil
}

func (p ListenPort) String() string { return strconv.Itoa(int(p)) }

// Validate accepts 0 and every port up to 65535.
func (p ListenPort) Validate() error {
	if p < 0 || p > maxListenPort {
		return &InvalidListenPortError{Value: p}
	}
	return nil
}

// IsEphemeral reports whether the port asks the kernel to pick a free port.
func (p ListenPort) IsEphemeral() bool { return p == 0 }

func (e *InvalidListenPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d: want 0 (any free port) or 1-%d", e.Value, maxListenPort)
}

// Unwrap returns ErrInvalidListenPort.
func (e *InvalidListenPortError) Unwrap() error { return ErrInvalidListenPort }
