// SPDX-License-Identifier: MPL-2.0

// Package pipeline assembles the processing chain of a single connection.
//
// A Pipeline holds an ordered list of named byte stages, at most one codec and
// one terminal. Configurators install those pieces; Compose chains several
// configurators so that they run strictly in the order given. A fresh Pipeline
// is built for every accepted connection and is never shared.
package pipeline
