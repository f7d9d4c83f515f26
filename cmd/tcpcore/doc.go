// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the tcpcore CLI: an echo server built on the server
// core, a one-shot client, and configuration management commands.
package cmd
