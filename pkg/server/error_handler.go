// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"net"
)

type (
	// ConnInfo identifies the connection a fault came from. ID is zero when
	// the fault occurred before the connection wrapper was created.
	ConnInfo struct {
		ID         uint64
		RemoteAddr net.Addr
		LocalAddr  net.Addr
	}

	// ErrorHandler receives faults raised while serving a connection.
	// Returning true marks the fault as handled and suppresses the default log entry.
	// It may be called concurrently for different connections.
	ErrorHandler interface {
		HandleError(ctx context.Context, info ConnInfo, err error) bool
	}

	// ErrorHandlerFunc adapts a function to the ErrorHandler interface.
	ErrorHandlerFunc func(ctx context.Context, info ConnInfo, err error) bool
)

// HandleError calls fn(ctx, info, err).
func (fn ErrorHandlerFunc) HandleError(ctx context.Context, info ConnInfo, err error) bool {
	return fn(ctx, info, err)
}

func infoFor(id uint64, conn net.Conn) ConnInfo {
	info := ConnInfo{ID: id}
	if conn != nil {
		info.RemoteAddr = conn.RemoteAddr()
		info.LocalAddr = conn.LocalAddr()
	}
	return info
}
