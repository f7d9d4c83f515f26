// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"net"
	"sync/atomic"

	"github.com/tcpcore/tcpcore/pkg/pipeline"
)

// NameCounting is the conventional pipeline name for Counting.
const NameCounting = "counting"

type (
	// Stats accumulates traffic across every connection wrapped by a Counting stage.
	// The zero value is ready to use.
	Stats struct {
		bytesIn     atomic.Int64
		bytesOut    atomic.Int64
		connections atomic.Int64
	}

	countingConn struct {
		net.Conn
		stats *Stats
	}
)

// Counting returns a stage that adds every byte read and written to stats.
func Counting(stats *Stats) pipeline.Stage {
	return pipeline.StageFunc(func(conn net.Conn) (net.Conn, error) {
		stats.connections.Add(1)
		return &countingConn{Conn: conn, stats: stats}, nil
	})
}

// BytesIn returns the number of bytes read from peers.
func (s *Stats) BytesIn() int64 { return s.bytesIn.Load() }

// BytesOut returns the number of bytes written to peers.
func (s *Stats) BytesOut() int64 { return s.bytesOut.Load() }

// Connections returns the number of connections the stage has wrapped.
func (s *Stats) Connections() int64 { return s.connections.Load() }

func (c *countingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.stats.bytesIn.Add(int64(n))
	return n, err
}

func (c *countingConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.stats.bytesOut.Add(int64(n))
	return n, err
}
