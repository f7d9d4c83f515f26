// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrInvalidHostAddress is the sentinel error wrapped by InvalidHostAddressError.
var ErrInvalidHostAddress = errors.New("invalid host address")

type (
	// HostAddress represents a network host address (IP or hostname) for server binding.
	// The empty value binds every interface.
	HostAddress string

	// InvalidHostAddressError is returned when a HostAddress value is
	// whitespace-only or carries a port.
	InvalidHostAddressError struct {
		Value  HostAddress
		Reason string
	}
)

// String returns the string representation of the HostAddress.
func (h HostAddress) String() string { return string(h) }

// Validate returns nil if the HostAddress is usable for binding,
// or an error wrapping ErrInvalidHostAddress if it is not.
func (h HostAddress) Validate() error {
	if h == "" {
		return nil
	}
	s := string(h)
	if strings.TrimSpace(s) == "" {
		return &InvalidHostAddressError{Value: h, Reason: "whitespace-only"}
	}
	if strings.TrimSpace(s) != s {
		return &InvalidHostAddressError{Value: h, Reason: "surrounding whitespace"}
	}
	// Bracketed or bare IPv6 literals contain colons; only reject host:port forms.
	if _, _, err := net.SplitHostPort(s); err == nil && net.ParseIP(s) == nil {
		return &InvalidHostAddressError{Value: h, Reason: "must not include a port"}
	}
	return nil
}

// JoinPort combines the host with port into a dialable or listenable address.
func (h HostAddress) JoinPort(port ListenPort) string {
	return net.JoinHostPort(string(h), port.String())
}

// Error implements the error interface for InvalidHostAddressError.
func (e *InvalidHostAddressError) Error() string {
	return fmt.Sprintf("invalid host address %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidHostAddress for errors.Is() compatibility.
func (e *InvalidHostAddressError) Unwrap() error { return ErrInvalidHostAddress }
