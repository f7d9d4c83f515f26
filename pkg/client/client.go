// SPDX-License-Identifier: MPL-2.0

// Package client dials TCP servers and wraps the socket with the same
// pipeline configurators a server uses, yielding a typed connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/tcpcore/tcpcore/pkg/connection"
	"github.com/tcpcore/tcpcore/pkg/pipeline"
)

var nextID atomic.Uint64

// ErrTerminalNotAllowed is returned when a configurator attaches a terminal.
// Client pipelines only carry stages and a codec.
var ErrTerminalNotAllowed = errors.New("client pipelines cannot attach a terminal")

// Dial connects to address and applies cfgs in order to build the pipeline.
// The returned connection's Receive and Send use the installed codec.
func Dial[I, O any](ctx context.Context, address string, cfgs ...pipeline.Configurator[I, O]) (*connection.Connection[I, O], error) {
	p := pipeline.New[I, O]()
	if err := pipeline.Compose(cfgs...).Configure(p); err != nil {
		return nil, fmt.Errorf("configure client pipeline: %w", err)
	}
	if p.Attached() {
		return nil, ErrTerminalNotAllowed
	}

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	conn, err := p.Wrap(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return connection.New(nextID.Add(1), conn, p.Codec()), nil
}
