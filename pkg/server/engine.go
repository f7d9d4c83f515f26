// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"net"

	"github.com/tcpcore/tcpcore/pkg/types"
)

type (
	// Initializer is invoked by the engine once per accepted socket, on a
	// goroutine owned by the engine. The engine closes conn after it returns.
	// ctx is cancelled when the binding closes.
	Initializer = func(ctx context.Context, conn net.Conn)

	// Engine binds listening sockets and runs their accept loop.
	Engine interface {
		// Bind synchronously binds port and starts accepting connections,
		// passing each to init.
		Bind(ctx context.Context, port types.ListenPort, init Initializer) (Binding, error)
	}

	// Binding is a bound listening socket.
	Binding interface {
		// Addr returns the bound address.
		Addr() net.Addr
		// Close closes the socket and blocks until the close completes.
		Close() error
		// Done is closed once the socket has closed, for any reason.
		Done() <-chan struct{}
	}
)
