// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"fmt"

	"github.com/tcpcore/tcpcore/internal/core/serverbase"
	"github.com/tcpcore/tcpcore/pkg/types"
)

// Lifecycle operations named in LifecycleError.
const (
	OpStart           Op = "start"
	OpShutdown        Op = "shutdown"
	OpWait            Op = "wait till shutdown"
	OpSetErrorHandler Op = "set error handler"
)

var (
	// ErrIllegalState is the sentinel error wrapped by LifecycleError.
	ErrIllegalState = errors.New("illegal server state")
	// ErrBind is the sentinel error wrapped by BindError.
	ErrBind = errors.New("failed to bind server socket")
	// ErrNilEngine is returned by New when no engine is given.
	ErrNilEngine = errors.New("server engine must not be nil")
	// ErrNilHandler is returned by New when no connection handler is given.
	ErrNilHandler = errors.New("connection handler must not be nil")
	// ErrNilErrorHandler is returned by WithErrorHandler when given nil.
	ErrNilErrorHandler = errors.New("error handler must not be nil")
	// ErrInvalidConfigurator is the sentinel error wrapped by ConfiguratorError.
	ErrInvalidConfigurator = errors.New("invalid pipeline configurator")
)

type (
	// Op names a lifecycle operation.
	Op string

	// LifecycleError reports an operation the current state forbids.
	LifecycleError struct {
		Op    Op
		State serverbase.State
	}

	// BindError reports that the engine could not bind the listening socket.
	BindError struct {
		Port  types.ListenPort
		Cause error
	}

	// ConfiguratorError reports a caller configurator rejected by Start.
	ConfiguratorError struct {
		Reason string
		Cause  error
	}

	// PanicError carries a value recovered from a panicking connection handler.
	PanicError struct {
		Value any
		Stack []byte
	}
)

// Error implements the error interface for LifecycleError.
func (e *LifecycleError) Error() string {
	switch e.Op {
	case OpStart:
		return fmt.Sprintf("cannot start server in state %s: server already started", e.State)
	case OpShutdown:
		if e.State == serverbase.StateShutdown {
			return "cannot shut down server: server is already shut down"
		}
		return fmt.Sprintf("cannot shut down server in state %s: server not started", e.State)
	case OpWait:
		return fmt.Sprintf("cannot wait for server in state %s: server not started yet", e.State)
	case OpSetErrorHandler:
		return fmt.Sprintf("cannot set error handler in state %s: server already started", e.State)
	default:
		return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
	}
}

// Unwrap returns ErrIllegalState for errors.Is() compatibility.
func (e *LifecycleError) Unwrap() error { return ErrIllegalState }

// Error implements the error interface for BindError.
func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind port %s: %v", e.Port, e.Cause)
}

// Unwrap exposes both ErrBind and the engine cause to errors.Is and errors.As.
func (e *BindError) Unwrap() []error { return []error{ErrBind, e.Cause} }

// Error implements the error interface for ConfiguratorError.
func (e *ConfiguratorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pipeline configurator %s: %v", e.Reason, e.Cause)
	}
	return "pipeline configurator " + e.Reason
}

// Unwrap exposes ErrInvalidConfigurator and the cause, if any.
func (e *ConfiguratorError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidConfigurator, e.Cause}
	}
	return []error{ErrInvalidConfigurator}
}

// Error implements the error interface for PanicError.
func (e *PanicError) Error() string {
	return fmt.Sprintf("connection handler panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
