// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"net"
	"sync/atomic"

	"github.com/tcpcore/tcpcore/pkg/codec"
)

type (
	// Factory creates the wrapper for an accepted socket.
	Factory[I, O any] interface {
		New(conn net.Conn, c codec.Codec[I, O]) *Connection[I, O]
	}

	// Unpooled allocates a new Connection on every call and assigns
	// increasing identifiers starting at 1. Connections are never reused.
	Unpooled[I, O any] struct {
		next atomic.Uint64
	}
)

// NewUnpooled returns an Unpooled factory.
func NewUnpooled[I, O any]() *Unpooled[I, O] {
	return &Unpooled[I, O]{}
}

// New returns a fresh Connection for conn.
func (f *Unpooled[I, O]) New(conn net.Conn, c codec.Codec[I, O]) *Connection[I, O] {
	return New(f.next.Add(1), conn, c)
}
