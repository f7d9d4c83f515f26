// SPDX-License-Identifier: MPL-2.0

// Package health serves HTTP liveness and readiness endpoints for a running
// tcpcore server.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tcpcore/tcpcore/internal/core/serverbase"
)

const shutdownTimeout = 5 * time.Second

type (
	// Target is the watched server.
	Target interface {
		State() serverbase.State
		// Done is closed once the listening socket has closed.
		Done() <-chan struct{}
	}

	// Server exposes /health (always 200 while the process serves HTTP) and
	// /ready (200 only while the watched server is started and its listening
	// socket is open).
	Server struct {
		server *http.Server
		target Target
		logger *log.Logger
	}

	status struct {
		Status string `json:"status"`
		State  string `json:"state"`
	}
)

// New returns a health server for addr that reports on target.
func New(addr string, target Target, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	hs := &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		target: target,
		logger: logger,
	}

	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("GET /ready", hs.handleReady)

	return hs
}

// Handler returns the HTTP handler serving both endpoints.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("health listener on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts the HTTP server down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("health server listening", "addr", ln.Addr())
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.write(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready() {
		s.write(w, http.StatusOK, "ready")
		return
	}
	s.write(w, http.StatusServiceUnavailable, "not ready")
}

func (s *Server) ready() bool {
	if s.target.State() != serverbase.StateStarted {
		return false
	}
	select {
	case <-s.target.Done():
		return false
	default:
		return true
	}
}

func (s *Server) write(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status{Status: msg, State: s.target.State().String()}); err != nil {
		s.logger.Debug("health response write failed", "error", err)
	}
}
