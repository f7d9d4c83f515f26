// SPDX-License-Identifier: MPL-2.0

package connection

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tcpcore/tcpcore/pkg/codec"
)

// ErrNoCodec is returned by Receive and Send when the pipeline installed no codec.
var ErrNoCodec = errors.New("connection has no codec")

// Connection wraps one accepted or dialed socket after every pipeline stage
// has been applied. It is owned by the goroutine serving that socket.
//
// Receive must be called from a single goroutine. Send is safe for concurrent use.
type Connection[I, O any] struct {
	id    uint64
	conn  net.Conn
	codec codec.Codec[I, O]

	r *bufio.Reader

	writeMu sync.Mutex
	w       *bufio.Writer

	attachment atomic.Value
	closeOnce  sync.Once
	closeErr   error
	closed     atomic.Bool
}

// New wraps conn. Most callers obtain connections from a Factory instead.
func New[I, O any](id uint64, conn net.Conn, c codec.Codec[I, O]) *Connection[I, O] {
	return &Connection[I, O]{
		id:    id,
		conn:  conn,
		codec: c,
		r:     bufio.NewReader(conn),
		w:     bufio.NewWriter(conn),
	}
}

// ID returns the identifier assigned by the factory.
func (c *Connection[I, O]) ID() uint64 { return c.id }

// RemoteAddr returns the peer address.
func (c *Connection[I, O]) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// LocalAddr returns the local address.
func (c *Connection[I, O]) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Conn returns the staged byte stream. Mixing direct reads with Receive
// loses data buffered by Receive.
func (c *Connection[I, O]) Conn() net.Conn { return c.conn }

// Receive decodes the next inbound message.
func (c *Connection[I, O]) Receive() (I, error) {
	if c.codec == nil {
		var zero I
		return zero, ErrNoCodec
	}
	return c.codec.Decode(c.r)
}

// Send encodes msg and flushes it to the socket.
func (c *Connection[I, O]) Send(msg O) error {
	if c.codec == nil {
		return ErrNoCodec
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.codec.Encode(c.w, msg); err != nil {
		return err
	}
	return c.w.Flush()
}

// Messages yields inbound messages until the stream ends or fails.
// A clean end of stream stops iteration without an error.
func (c *Connection[I, O]) Messages() iter.Seq2[I, error] {
	return func(yield func(I, error) bool) {
		for {
			msg, err := c.Receive()
			if err != nil {
				if !isEOF(err) && !c.closed.Load() {
					var zero I
					yield(zero, err)
				}
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Attach stores caller state on the connection.
func (c *Connection[I, O]) Attach(v any) { c.attachment.Store(&v) }

// Attachment returns the value stored by Attach, or nil.
func (c *Connection[I, O]) Attachment() any {
	if p, ok := c.attachment.Load().(*any); ok {
		return *p
	}
	return nil
}

// Close closes the socket. It is safe to call more than once.
func (c *Connection[I, O]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Closed reports whether Close was called.
func (c *Connection[I, O]) Closed() bool { return c.closed.Load() }

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
