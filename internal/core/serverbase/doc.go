// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides the lifecycle state machine shared by listening
// servers.
//
// Every transition is a compare-and-set on an atomic state value and reports
// success as a bool, so concurrent callers race safely and exactly one wins.
// Callers decide how a failed transition is surfaced.
package serverbase
