// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"fmt"
	"net"
	"time"

	"github.com/tcpcore/tcpcore/pkg/pipeline"
)

// NameIdleTimeout is the conventional pipeline name for IdleTimeout.
const NameIdleTimeout = "idle-timeout"

type idleConn struct {
	net.Conn
	timeout time.Duration
}

// IdleTimeout returns a stage that refreshes the read deadline before every
// Read, so a peer that stays silent for d fails the read with a timeout.
// A non-positive d disables the stage.
func IdleTimeout(d time.Duration) pipeline.Stage {
	return pipeline.StageFunc(func(conn net.Conn) (net.Conn, error) {
		if d <= 0 {
			return conn, nil
		}
		return &idleConn{Conn: conn, timeout: d}, nil
	})
}

func (c *idleConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	return c.Conn.Read(b)
}
