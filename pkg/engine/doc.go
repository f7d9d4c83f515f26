// SPDX-License-Identifier: MPL-2.0

// Package engine provides the default socket-binding engine: a TCP listener
// with one goroutine per accepted connection.
//
// Closing a binding stops the accept loop, optionally waits a grace period for
// active connections to finish, then cancels and closes whatever remains.
package engine
