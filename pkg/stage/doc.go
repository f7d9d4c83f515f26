// SPDX-License-Identifier: MPL-2.0

// Package stage provides reusable byte-level pipeline stages: idle timeouts,
// traffic counters and debug tracing of socket reads and writes.
package stage
