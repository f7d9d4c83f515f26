// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"net"

	"github.com/charmbracelet/log"

	"github.com/tcpcore/tcpcore/pkg/pipeline"
)

// NameTrace is the conventional pipeline name for Trace.
const NameTrace = "trace"

type traceConn struct {
	net.Conn
	logger *log.Logger
}

// Trace returns a stage that logs every read, write and close at debug level.
func Trace(logger *log.Logger) pipeline.Stage {
	return pipeline.StageFunc(func(conn net.Conn) (net.Conn, error) {
		l := logger.With("remote", conn.RemoteAddr())
		l.Debug("connection opened")
		return &traceConn{Conn: conn, logger: l}, nil
	})
}

func (c *traceConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if err != nil {
		c.logger.Debug("read", "bytes", n, "error", err)
	} else {
		c.logger.Debug("read", "bytes", n)
	}
	return n, err
}

func (c *traceConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if err != nil {
		c.logger.Debug("write", "bytes", n, "error", err)
	} else {
		c.logger.Debug("write", "bytes", n)
	}
	return n, err
}

func (c *traceConn) Close() error {
	c.logger.Debug("connection closed")
	return c.Conn.Close()
}
