// SPDX-License-Identifier: MPL-2.0

// Package types holds small validated value types shared by the server, its
// configuration and the command line.
package types
