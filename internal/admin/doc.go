// SPDX-License-Identifier: MPL-2.0

// Package admin provides an SSH console, built on Wish, for inspecting and
// stopping a running tcpcore server.
//
// Sessions authenticate with a shared token as the SSH password. The session
// command selects the action:
//
//	ssh -p 7072 admin@127.0.0.1 status
//	ssh -p 7072 admin@127.0.0.1 shutdown
package admin
