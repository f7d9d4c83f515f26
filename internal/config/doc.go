// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the
// primary file format.
//
// Values are resolved from, in increasing precedence: built-in defaults, a
// config file (config.cue validated against the embedded config_schema.cue, or
// config.toml), TCPCORE_* environment variables and explicit overrides such as
// command line flags. The file is looked up in the user config directory
// (~/.config/tcpcore on Linux) and then in the working directory.
package config
