// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"

	"github.com/tcpcore/tcpcore/pkg/codec"
	"github.com/tcpcore/tcpcore/pkg/connection"
	"github.com/tcpcore/tcpcore/pkg/pipeline"
)

type (
	// faultReporter receives every connection fault exactly once.
	faultReporter func(ctx context.Context, info ConnInfo, err error)

	// baseline is the configurator applied last to every pipeline. It attaches
	// the terminal that creates the connection and runs the handler.
	baseline[I, O any] struct {
		handler connection.Handler[I, O]
		factory connection.Factory[I, O]
		report  faultReporter
	}
)

func newBaseline[I, O any](h connection.Handler[I, O], f connection.Factory[I, O], report faultReporter) *baseline[I, O] {
	return &baseline[I, O]{handler: h, factory: f, report: report}
}

// Configure attaches the handler terminal, replacing any terminal attached
// by an earlier configurator.
func (b *baseline[I, O]) Configure(p *pipeline.Pipeline[I, O]) error {
	p.Detach()
	return p.Attach(b.serve)
}

// serve never returns an error: faults are reported here and stop at this boundary.
func (b *baseline[I, O]) serve(ctx context.Context, raw net.Conn, c codec.Codec[I, O]) error {
	var id uint64
	if err := b.run(ctx, raw, c, &id); err != nil && !errors.Is(err, io.EOF) {
		b.report(ctx, infoFor(id, raw), err)
	}
	return nil
}

func (b *baseline[I, O]) run(ctx context.Context, raw net.Conn, c codec.Codec[I, O], id *uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	conn := b.factory.New(raw, c)
	if conn == nil {
		return errors.New("connection factory returned nil")
	}
	*id = conn.ID()
	defer conn.Close()

	return b.handler.Handle(ctx, conn)
}
