// SPDX-License-Identifier: MPL-2.0

// Package connection defines the per-socket wrapper handed to connection
// handlers, the handler contract itself, and the factory that creates one
// wrapper per accepted socket.
package connection
