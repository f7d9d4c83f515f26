// SPDX-License-Identifier: MPL-2.0

// Package server provides a generic TCP server core.
//
// A Server owns the lifecycle of one listening socket (Created, Starting,
// Started, Shutdown) and delegates accept-loop I/O to an injected Engine. For
// every accepted socket it builds a fresh pipeline by running the caller's
// configurator, if any, followed by a mandatory baseline configurator that
// wraps the socket in a connection and hands it to the connection handler.
// Faults raised by a handler are isolated to that connection and routed to
// the registered ErrorHandler, or logged when none is registered.
//
// Lifecycle misuse (starting twice, shutting down before starting, setting
// the error handler after start) fails with an error wrapping ErrIllegalState.
package server
