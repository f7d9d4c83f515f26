// SPDX-License-Identifier: MPL-2.0

package server

import (
	"github.com/tcpcore/tcpcore/pkg/connection"
	"github.com/tcpcore/tcpcore/pkg/pipeline"

	"github.com/charmbracelet/log"
)

// Option configures a Server.
type Option[I, O any] func(*Server[I, O])

// WithPipelineConfigurator sets the caller configurator. It runs before the
// baseline configurator on every accepted connection.
func WithPipelineConfigurator[I, O any](cfg pipeline.Configurator[I, O]) Option[I, O] {
	return func(s *Server[I, O]) {
		s.configurator = cfg
	}
}

// WithConnectionFactory replaces the default unpooled connection factory.
func WithConnectionFactory[I, O any](f connection.Factory[I, O]) Option[I, O] {
	return func(s *Server[I, O]) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithLogger sets the logger used for lifecycle events and unhandled faults.
func WithLogger[I, O any](l *log.Logger) Option[I, O] {
	return func(s *Server[I, O]) {
		if l != nil {
			s.logger = l
		}
	}
}
