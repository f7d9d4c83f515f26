// SPDX-License-Identifier: MPL-2.0

package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/tcpcore/tcpcore/internal/core/serverbase"
)

const (
	// DefaultShutdownTimeout bounds how long Stop waits for open sessions.
	DefaultShutdownTimeout = 5 * time.Second

	tokenBytes = 32
)

var (
	// ErrNotRunning is returned by Stop when the console was never started or is already stopped.
	ErrNotRunning = errors.New("admin console is not running")
	// ErrAlreadyStarted is returned by Start once the console has left the Created state.
	ErrAlreadyStarted = errors.New("admin console already started")
)

type (
	// Status is the snapshot printed by the status command.
	Status struct {
		State       serverbase.State
		Address     string
		Connections int64
		BytesIn     int64
		BytesOut    int64
	}

	// Target is the server the console reports on and controls.
	Target interface {
		Status() Status
		Shutdown() error
	}

	// Config holds immutable configuration for the console.
	Config struct {
		// Address is the host:port to listen on; port 0 picks a free port.
		Address string
		// Token is the shared secret; empty generates a random one at construction.
		Token string
		// ShutdownTimeout bounds Stop; zero means DefaultShutdownTimeout.
		ShutdownTimeout time.Duration
	}

	// Console is a single-use SSH admin server.
	Console struct {
		cfg    Config
		target Target
		logger *log.Logger
		base   *serverbase.Base

		srv  *ssh.Server
		ln   net.Listener
		done chan struct{}
	}
)

// New creates a console for target. It fails only when a token cannot be generated.
func New(cfg Config, target Target, logger *log.Logger) (*Console, error) {
	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, err
		}
		cfg.Token = token
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "admin"})
	}

	return &Console{
		cfg:    cfg,
		target: target,
		logger: logger,
		base:   serverbase.NewBase(),
		done:   make(chan struct{}),
	}, nil
}

// Token returns the password sessions must present.
func (c *Console) Token() string { return c.cfg.Token }

// State returns the console lifecycle state.
func (c *Console) State() serverbase.State { return c.base.State() }

// Addr returns the bound address once started, nil otherwise.
func (c *Console) Addr() net.Addr {
	if !c.base.State().IsBound() {
		return nil
	}
	return c.ln.Addr()
}

// Start binds the listener and serves sessions in the background.
func (c *Console) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before start: %w", err)
	}
	if !c.base.TryStart() {
		return fmt.Errorf("%w (state %s)", ErrAlreadyStarted, c.base.State())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", c.cfg.Address)
	if err != nil {
		err = fmt.Errorf("failed to listen on %s: %w", c.cfg.Address, err)
		c.base.AbortStart(err)
		return err
	}

	srv, err := wish.NewServer(
		wish.WithAddress(ln.Addr().String()),
		wish.WithPasswordAuth(c.passwordHandler),
		wish.WithPublicKeyAuth(func(ssh.Context, ssh.PublicKey) bool { return false }),
		wish.WithMiddleware(c.commandMiddleware()),
	)
	if err != nil {
		_ = ln.Close()
		err = fmt.Errorf("failed to create SSH server: %w", err)
		c.base.AbortStart(err)
		return err
	}

	c.srv, c.ln = srv, ln
	go c.serve()

	c.base.MarkStarted()
	c.logger.Info("admin console listening", "address", ln.Addr())
	return nil
}

// Stop closes the listener and waits up to the shutdown timeout for sessions.
func (c *Console) Stop() error {
	if !c.base.TryShutdown() {
		return ErrNotRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	err := c.srv.Shutdown(ctx)
	_ = c.ln.Close()
	<-c.done
	c.base.MarkClosed()

	if err != nil && !errors.Is(err, ssh.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("admin console shutdown: %w", err)
	}
	c.logger.Info("admin console stopped")
	return nil
}

func (c *Console) serve() {
	defer close(c.done)

	err := c.srv.Serve(c.ln)
	if err != nil && !errors.Is(err, ssh.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		c.logger.Error("admin console serve error", "error", err)
	}
}

func (c *Console) passwordHandler(ctx ssh.Context, password string) bool {
	if subtle.ConstantTimeCompare([]byte(password), []byte(c.cfg.Token)) == 1 {
		return true
	}
	c.logger.Warn("rejected admin login", "user", ctx.User(), "remote", ctx.RemoteAddr())
	return false
}

func (c *Console) commandMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			_ = sess.Exit(c.run(sess, sess.Command()))
		}
	}
}

// run executes one session command and returns its exit status.
func (c *Console) run(sess ssh.Session, args []string) int {
	cmd := "status"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "status":
		fmt.Fprint(sess, FormatStatus(c.target.Status()))
		return 0
	case "shutdown":
		c.logger.Info("shutdown requested over admin console", "user", sess.User())
		if err := c.target.Shutdown(); err != nil {
			fmt.Fprintf(sess.Stderr(), "shutdown failed: %v\n", err)
			return 1
		}
		fmt.Fprintln(sess, "server shut down")
		return 0
	default:
		fmt.Fprintf(sess.Stderr(), "unknown command %q (available: status, shutdown)\n", strings.Join(args, " "))
		return 2
	}
}

// FormatStatus renders s as aligned key/value lines.
func FormatStatus(s Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "state:       %s\n", s.State)
	fmt.Fprintf(&sb, "address:     %s\n", s.Address)
	fmt.Fprintf(&sb, "connections: %d\n", s.Connections)
	fmt.Fprintf(&sb, "bytes_in:    %d\n", s.BytesIn)
	fmt.Fprintf(&sb, "bytes_out:   %d\n", s.BytesOut)
	return sb.String()
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate admin token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
