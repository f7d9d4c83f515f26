// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"time"

	"github.com/tcpcore/tcpcore/pkg/types"

	"github.com/charmbracelet/log"
)

type (
	// Config holds socket and accept-loop settings.
	Config struct {
		Host           types.HostAddress
		ReuseAddr      bool
		ReusePort      bool
		NoDelay        bool
		KeepAlive      time.Duration
		ShutdownGrace  time.Duration
		MaxConnections int
	}

	// Option configures a TCP engine.
	Option func(*TCP)
)

// DefaultConfig returns loopback-agnostic defaults: all interfaces, address
// reuse, Nagle disabled and no drain period.
func DefaultConfig() Config {
	return Config{
		ReuseAddr: true,
		NoDelay:   true,
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(e *TCP) { e.cfg = cfg }
}

// WithHost sets the interface to bind.
func WithHost(host types.HostAddress) Option {
	return func(e *TCP) { e.cfg.Host = host }
}

// WithReusePort enables SO_REUSEPORT on the listening socket.
func WithReusePort(enable bool) Option {
	return func(e *TCP) { e.cfg.ReusePort = enable }
}

// WithNoDelay sets TCP_NODELAY on accepted connections.
func WithNoDelay(enable bool) Option {
	return func(e *TCP) { e.cfg.NoDelay = enable }
}

// WithKeepAlive sets the keep-alive period of accepted connections.
// Zero keeps the system default; a negative value disables keep-alive.
func WithKeepAlive(d time.Duration) Option {
	return func(e *TCP) { e.cfg.KeepAlive = d }
}

// WithShutdownGrace sets how long Close waits for active connections before
// force-closing them.
func WithShutdownGrace(d time.Duration) Option {
	return func(e *TCP) { e.cfg.ShutdownGrace = d }
}

// WithMaxConnections caps concurrently served connections. Extra connections
// are accepted and closed immediately. Zero means unlimited.
func WithMaxConnections(n int) Option {
	return func(e *TCP) { e.cfg.MaxConnections = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *TCP) {
		if l != nil {
			e.logger = l
		}
	}
}
