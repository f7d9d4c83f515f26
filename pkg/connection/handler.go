// SPDX-License-Identifier: MPL-2.0

package connection

import "context"

type (
	// Handler processes one connection for its whole lifetime. Returning an
	// error reports a fault for that connection only.
	Handler[I, O any] interface {
		Handle(ctx context.Context, conn *Connection[I, O]) error
	}

	// HandlerFunc adapts a function to the Handler interface.
	HandlerFunc[I, O any] func(ctx context.Context, conn *Connection[I, O]) error
)

// Handle calls fn(ctx, conn).
func (fn HandlerFunc[I, O]) Handle(ctx context.Context, conn *Connection[I, O]) error {
	return fn(ctx, conn)
}
