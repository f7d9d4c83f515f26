// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema.
//
// Every caller follows the same flow: compile the schema, compile the user
// document and unify it with a schema definition, then validate and decode.
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	m, err := cueutil.DecodeMap(schema, data, "#Config",
//	    cueutil.WithFilename("config.cue"),
//	    cueutil.WithConcrete(false),
//	)
package cueutil
