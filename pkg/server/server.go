// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tcpcore/tcpcore/internal/core/serverbase"
	"github.com/tcpcore/tcpcore/pkg/connection"
	"github.com/tcpcore/tcpcore/pkg/pipeline"
	"github.com/tcpcore/tcpcore/pkg/types"

	"github.com/charmbracelet/log"
)

// Server is a TCP server whose connections carry inbound messages of type I
// and outbound messages of type O.
//
// A Server is single-use once shut down. A failed bind returns it to
// StateCreated so Start may be retried.
type Server[I, O any] struct {
	base *serverbase.Base

	engine       Engine
	port         types.ListenPort
	handler      connection.Handler[I, O]
	configurator pipeline.Configurator[I, O]
	factory      connection.Factory[I, O]
	logger       *log.Logger

	// configMu orders error handler registration against the Started transition.
	configMu     sync.Mutex
	errorHandler atomic.Pointer[ErrorHandler]

	// effective is built by Start and read by the engine goroutines.
	effective pipeline.Configurator[I, O]

	bindingMu sync.Mutex
	binding   Binding
}

// New creates a server that will bind port through engine and pass every
// accepted connection to handler.
func New[I, O any](engine Engine, port types.ListenPort, handler connection.Handler[I, O], opts ...Option[I, O]) (*Server[I, O], error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	if err := port.Validate(); err != nil {
		return nil, err
	}

	s := &Server[I, O]{
		engine:  engine,
		port:    port,
		handler: handler,
		factory: connection.NewUnpooled[I, O](),
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "server"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base = serverbase.NewBase(serverbase.WithObserver(func(from, to serverbase.State) {
		s.logger.Debug("state transition", "from", from, "to", to, "port", s.port)
	}))

	return s, nil
}

// State returns the current lifecycle state.
func (s *Server[I, O]) State() serverbase.State {
	return s.base.State()
}

// LastError returns the bind failure recorded by the most recent failed Start, or nil.
func (s *Server[I, O]) LastError() error {
	return s.base.LastError()
}

// Addr returns the bound address, or nil if the server has not started.
func (s *Server[I, O]) Addr() net.Addr {
	if b := s.currentBinding(); b != nil {
		return b.Addr()
	}
	return nil
}

// Port returns the bound port once started, otherwise the configured port.
func (s *Server[I, O]) Port() types.ListenPort {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return types.ListenPort(tcp.Port)
	}
	return s.port
}

// Done returns a channel closed once the listening socket has closed.
func (s *Server[I, O]) Done() <-chan struct{} {
	return s.base.Closed()
}

// Start binds the listening socket and begins accepting connections.
// It fails with ErrIllegalState unless the server is in StateCreated, with a
// *ConfiguratorError when the caller configurator fails or attaches a terminal,
// and with a *BindError when the engine cannot bind. After either failure the
// server is back in StateCreated.
func (s *Server[I, O]) Start(ctx context.Context) (*Server[I, O], error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before start: %w", err)
	}
	if !s.base.TryStart() {
		return nil, &LifecycleError{Op: OpStart, State: s.base.State()}
	}

	if err := s.checkConfigurator(); err != nil {
		s.base.AbortStart(err)
		return nil, err
	}
	s.effective = s.effectiveConfigurator()

	binding, err := s.engine.Bind(ctx, s.port, s.initialize)
	if err != nil {
		bindErr := &BindError{Port: s.port, Cause: err}
		s.base.AbortStart(bindErr)
		s.logger.Error("bind failed", "port", s.port, "error", err)
		return nil, bindErr
	}

	s.bindingMu.Lock()
	s.binding = binding
	s.bindingMu.Unlock()

	go func() {
		<-binding.Done()
		s.base.MarkClosed()
	}()

	s.configMu.Lock()
	s.base.MarkStarted()
	s.configMu.Unlock()

	s.logger.Info("server started", "address", binding.Addr())
	return s, nil
}

// WithErrorHandler registers h for faults on connections accepted from now on.
// It fails with ErrIllegalState once the server has started.
func (s *Server[I, O]) WithErrorHandler(h ErrorHandler) (*Server[I, O], error) {
	if h == nil {
		return nil, ErrNilErrorHandler
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	if st := s.base.State(); st.IsBound() {
		return nil, &LifecycleError{Op: OpSetErrorHandler, State: st}
	}
	s.errorHandler.Store(&h)
	return s, nil
}

// Shutdown closes the listening socket and blocks until the close completes.
// It fails with ErrIllegalState unless the server is in StateStarted.
func (s *Server[I, O]) Shutdown() error {
	if !s.base.TryShutdown() {
		return &LifecycleError{Op: OpShutdown, State: s.base.State()}
	}

	b := s.currentBinding()
	err := b.Close()
	<-b.Done()
	s.base.MarkClosed()

	if err != nil {
		return fmt.Errorf("close listening socket: %w", err)
	}
	s.logger.Info("server shut down", "address", b.Addr())
	return nil
}

// WaitTillShutdown blocks until the listening socket closes, whether through
// Shutdown or an engine fault. It returns nil immediately once shut down,
// and nil early when ctx is cancelled. Waiting before Start fails with
// ErrIllegalState.
func (s *Server[I, O]) WaitTillShutdown(ctx context.Context) error {
	st := s.base.State()
	if st.IsTerminal() {
		return nil
	}
	if !st.IsBound() {
		return &LifecycleError{Op: OpWait, State: st}
	}

	select {
	case <-s.base.Closed():
	case <-ctx.Done():
	}
	return nil
}

// StartAndWait starts the server and waits until its socket closes or ctx
// is cancelled. Cancellation is not an error; the server stays started.
func (s *Server[I, O]) StartAndWait(ctx context.Context) error {
	if _, err := s.Start(ctx); err != nil {
		return err
	}
	return s.WaitTillShutdown(ctx)
}

// checkConfigurator applies the caller configurator to a scratch pipeline.
// The handler terminal belongs to the baseline, so a caller that attaches its
// own terminal is rejected before any socket is bound.
func (s *Server[I, O]) checkConfigurator() error {
	if s.configurator == nil {
		return nil
	}
	p := pipeline.New[I, O]()
	if err := s.configurator.Configure(p); err != nil {
		return &ConfiguratorError{Reason: "failed", Cause: err}
	}
	if p.Attached() {
		return &ConfiguratorError{Reason: "attached a terminal; the connection handler is the only terminal"}
	}
	return nil
}

// effectiveConfigurator composes the caller configurator with the baseline,
// which always runs last.
func (s *Server[I, O]) effectiveConfigurator() pipeline.Configurator[I, O] {
	required := newBaseline(s.handler, s.factory, s.reportFault)
	if s.configurator == nil {
		return required
	}
	return pipeline.Compose[I, O](s.configurator, required)
}

// newPipeline builds the wired pipeline for one accepted connection.
func (s *Server[I, O]) newPipeline() (*pipeline.Pipeline[I, O], error) {
	p := pipeline.New[I, O]()
	if err := s.effective.Configure(p); err != nil {
		return nil, fmt.Errorf("configure pipeline: %w", err)
	}
	return p, nil
}

// initialize is the engine callback for one accepted socket.
func (s *Server[I, O]) initialize(ctx context.Context, conn net.Conn) {
	p, err := s.newPipeline()
	if err == nil {
		err = p.Serve(ctx, conn)
	}
	if err != nil {
		s.reportFault(ctx, infoFor(0, conn), err)
	}
}

func (s *Server[I, O]) reportFault(ctx context.Context, info ConnInfo, err error) {
	if hp := s.errorHandler.Load(); hp != nil && s.callErrorHandler(ctx, *hp, info, err) {
		return
	}
	s.logger.Error("connection fault", "conn", info.ID, "remote", info.RemoteAddr, "error", err)
}

func (s *Server[I, O]) callErrorHandler(ctx context.Context, h ErrorHandler, info ConnInfo, err error) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error handler panicked", "conn", info.ID, "panic", r)
			handled = false
		}
	}()
	return h.HandleError(ctx, info, err)
}

func (s *Server[I, O]) currentBinding() Binding {
	s.bindingMu.Lock()
	defer s.bindingMu.Unlock()
	return s.binding
}
