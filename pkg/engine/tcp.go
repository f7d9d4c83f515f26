// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tcpcore/tcpcore/pkg/server"
	"github.com/tcpcore/tcpcore/pkg/types"

	"github.com/charmbracelet/log"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

var errNilInitializer = errors.New("connection initializer must not be nil")

type (
	// TCP binds TCP listeners. A TCP engine may bind any number of sockets.
	TCP struct {
		cfg    Config
		logger *log.Logger
	}

	// Listener is a bound TCP socket and its accept loop.
	Listener struct {
		ln     net.Listener
		cfg    Config
		logger *log.Logger
		init   server.Initializer

		// ctx is handed to every connection and cancelled when draining ends.
		ctx    context.Context
		cancel context.CancelFunc

		mu     sync.Mutex
		conns  map[net.Conn]struct{}
		connWg sync.WaitGroup
		active atomic.Int64

		closeOnce sync.Once
		closeErr  error
		done      chan struct{}
	}
)

var _ server.Engine = (*TCP)(nil)

// NewTCP creates an engine with DefaultConfig adjusted by opts.
func NewTCP(opts ...Option) *TCP {
	e := &TCP{
		cfg:    DefaultConfig(),
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "engine"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *TCP) Config() Config { return e.cfg }

// Bind listens on port and starts the accept loop.
func (e *TCP) Bind(ctx context.Context, port types.ListenPort, init server.Initializer) (server.Binding, error) {
	if init == nil {
		return nil, errNilInitializer
	}
	if err := port.Validate(); err != nil {
		return nil, err
	}
	if err := e.cfg.Host.Validate(); err != nil {
		return nil, err
	}

	addr := e.cfg.Host.JoinPort(port)
	lc := net.ListenConfig{
		Control:   control(e.cfg),
		KeepAlive: e.cfg.KeepAlive,
	}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l := &Listener{
		ln:     ln,
		cfg:    e.cfg,
		logger: e.logger,
		init:   init,
		conns:  make(map[net.Conn]struct{}),
		done:   make(chan struct{}),
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())

	go l.acceptLoop()

	e.logger.Debug("listening", "address", ln.Addr())
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Active returns the number of connections currently being served.
func (l *Listener) Active() int64 { return l.active.Load() }

// Done is closed after the accept loop and every connection goroutine exit.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Close closes the listening socket and blocks until draining completes.
// Safe to call multiple times.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			l.closeErr = err
		}
	})
	<-l.done
	return l.closeErr
}

func (l *Listener) acceptLoop() {
	defer l.drain()

	backoff := time.Duration(0)
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = nextBackoff(backoff)
			l.logger.Warn("accept error", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if limit := l.cfg.MaxConnections; limit > 0 && l.active.Load() >= int64(limit) {
			l.logger.Warn("max connections reached, rejecting", "remote", conn.RemoteAddr(), "max", limit)
			_ = conn.Close()
			continue
		}

		l.configure(conn)
		l.serve(conn)
	}
}

func (l *Listener) configure(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcp.SetNoDelay(l.cfg.NoDelay); err != nil {
		l.logger.Debug("set no-delay failed", "remote", conn.RemoteAddr(), "error", err)
	}
}

func (l *Listener) serve(conn net.Conn) {
	l.mu.Lock()
	l.conns[conn] = struct{}{}
	l.mu.Unlock()
	l.active.Add(1)
	l.connWg.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("connection initializer panicked", "remote", conn.RemoteAddr(), "panic", r)
			}
			_ = conn.Close()
			l.mu.Lock()
			delete(l.conns, conn)
			l.mu.Unlock()
			l.active.Add(-1)
			l.connWg.Done()
		}()

		l.init(l.ctx, conn)
	}()
}

// drain runs once the accept loop has exited.
func (l *Listener) drain() {
	defer close(l.done)

	if grace := l.cfg.ShutdownGrace; grace > 0 && l.active.Load() > 0 {
		finished := make(chan struct{})
		go func() {
			l.connWg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(grace):
			l.logger.Warn("shutdown grace elapsed, closing connections", "active", l.active.Load())
		}
	}

	l.cancel()
	l.mu.Lock()
	for conn := range l.conns {
		_ = conn.Close()
	}
	l.mu.Unlock()
	l.connWg.Wait()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(d*2, maxAcceptBackoff)
}
