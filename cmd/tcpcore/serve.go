// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tcpcore/tcpcore/internal/admin"
	"github.com/tcpcore/tcpcore/internal/config"
	"github.com/tcpcore/tcpcore/internal/core/serverbase"
	"github.com/tcpcore/tcpcore/internal/health"
	"github.com/tcpcore/tcpcore/internal/issue"
	"github.com/tcpcore/tcpcore/pkg/codec"
	"github.com/tcpcore/tcpcore/pkg/connection"
	"github.com/tcpcore/tcpcore/pkg/engine"
	"github.com/tcpcore/tcpcore/pkg/pipeline"
	"github.com/tcpcore/tcpcore/pkg/server"
	"github.com/tcpcore/tcpcore/pkg/stage"
	"github.com/tcpcore/tcpcore/pkg/types"
)

// readyFunc is invoked once the server is bound; tests use it to learn the port.
type readyFunc func(addr string)

func newServeCommand(app *App) *cobra.Command {
	var (
		host      string
		port      int
		codecName string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an echo server",
		Long: `Run a TCP echo server. Every decoded message is written back to its sender.

The server stops gracefully on interrupt: the listening socket closes, active
connections get the configured shutdown grace to finish, and the remaining
ones are closed.

With admin.enabled set, an SSH console accepts "status" and "shutdown"
commands authenticated by admin.token.`,
		Args: cobra.NoArgs,
	}

	cmd.Flags().StringVar(&host, "host", "", "address to bind (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to bind, 0 picks a free port (overrides server.port)")
	cmd.Flags().StringVar(&codecName, "codec", "", "message codec: raw, lines or frames (overrides server.codec)")

	cmd.RunE = withIssueReport(app, func(cmd *cobra.Command, _ []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			overrides["server.host"] = host
		}
		if cmd.Flags().Changed("port") {
			overrides["server.port"] = port
		}
		if cmd.Flags().Changed("codec") {
			overrides["server.codec"] = codecName
		}

		cfg, path, err := app.loadConfig(cmd.Context(), overrides)
		if err != nil {
			return &ExitError{Code: types.ExitConfig, Err: err}
		}
		logger := app.newLogger(cfg.Log.Level)
		if path != "" {
			logger.Debug("configuration loaded", "file", path)
		}
		return runServe(cmd.Context(), cfg, logger, nil)
	})

	return cmd
}

// runServe dispatches on the configured codec.
func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger, ready readyFunc) error {
	switch cfg.Server.Codec {
	case config.CodecRaw:
		return serveEcho(ctx, cfg, logger, codec.Raw(), ready)
	case config.CodecLines:
		return serveEcho(ctx, cfg, logger, codec.Lines(cfg.Server.MaxFrameSize), ready)
	case config.CodecFrames:
		return serveEcho(ctx, cfg, logger, codec.Frames(codec.WithMaxFrameSize(cfg.Server.MaxFrameSize)), ready)
	default:
		return issue.NewErrorContext().
			WithOperation("select codec").
			WithResource(cfg.Server.Codec.String()).
			WithIssue(issue.UnknownCodecId).
			Wrap(&config.InvalidCodecNameError{Value: cfg.Server.Codec}).
			BuildError()
	}
}

func serveEcho[M any](ctx context.Context, cfg *config.Config, logger *log.Logger, c codec.Codec[M, M], ready readyFunc) error {
	var stats stage.Stats

	stages := []pipeline.Configurator[M, M]{
		pipeline.WithStage[M, M](stage.NameCounting, stage.Counting(&stats)),
		pipeline.WithStage[M, M](stage.NameIdleTimeout, stage.IdleTimeout(cfg.Server.IdleTimeout)),
	}
	if logger.GetLevel() <= log.DebugLevel {
		stages = append(stages, pipeline.WithStage[M, M](stage.NameTrace, stage.Trace(logger.WithPrefix("trace"))))
	}
	stages = append(stages, pipeline.WithCodec[M, M](c))

	eng := engine.NewTCP(
		engine.WithConfig(engineConfig(cfg.Server)),
		engine.WithLogger(logger.WithPrefix("engine")),
	)

	srv, err := server.New[M, M](eng, cfg.Server.Port, echoHandler[M](),
		server.WithPipelineConfigurator[M, M](pipeline.Compose[M, M](stages...)),
		server.WithLogger[M, M](logger.WithPrefix("server")),
	)
	if err != nil {
		return err
	}

	faultLog := logger.WithPrefix("fault")
	if _, err := srv.WithErrorHandler(server.ErrorHandlerFunc(func(_ context.Context, info server.ConnInfo, err error) bool {
		faultLog.Warn("connection closed with error", "conn", info.ID, "remote", info.RemoteAddr, "error", err)
		return true
	})); err != nil {
		return err
	}

	if _, err := srv.Start(ctx); err != nil {
		return bindFailure(err, cfg.Server)
	}
	if ready != nil {
		ready(srv.Addr().String())
	}

	var console *admin.Console
	if cfg.Admin.Enabled {
		console, err = startAdmin(ctx, cfg.Admin, &adminTarget[M]{srv: srv, stats: &stats}, logger)
		if err != nil {
			return errors.Join(err, srv.Shutdown())
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.WaitTillShutdown(gctx); err != nil {
			return err
		}
		// Either the listener closed on its own or we are stopping.
		cancel()
		return nil
	})
	if cfg.Health.Enabled {
		hs := health.New(cfg.Health.Address, srv, logger.WithPrefix("health"))
		g.Go(func() error { return hs.ListenAndServe(gctx) })
	}
	if console != nil {
		g.Go(func() error {
			<-gctx.Done()
			return console.Stop()
		})
	}

	runErr := g.Wait()

	if srv.State() == serverbase.StateStarted {
		if err := srv.Shutdown(); err != nil && !errors.Is(err, server.ErrIllegalState) {
			runErr = errors.Join(runErr, err)
		}
	}

	logger.Info("server stopped",
		"connections", stats.Connections(),
		"bytes_in", stats.BytesIn(),
		"bytes_out", stats.BytesOut(),
	)
	return runErr
}

func startAdmin(ctx context.Context, ac config.AdminConfig, target admin.Target, logger *log.Logger) (*admin.Console, error) {
	console, err := admin.New(admin.Config{Address: ac.Address, Token: ac.Token}, target, logger.WithPrefix("admin"))
	if err != nil {
		return nil, err
	}
	if err := console.Start(ctx); err != nil {
		return nil, err
	}
	if ac.Token == "" {
		logger.Info("admin console token generated", "token", console.Token())
	}
	return console, nil
}

// adminTarget exposes a running server to the admin console.
type adminTarget[M any] struct {
	srv   *server.Server[M, M]
	stats *stage.Stats
}

func (a *adminTarget[M]) Status() admin.Status {
	st := admin.Status{
		State:       a.srv.State(),
		Connections: a.stats.Connections(),
		BytesIn:     a.stats.BytesIn(),
		BytesOut:    a.stats.BytesOut(),
	}
	if addr := a.srv.Addr(); addr != nil {
		st.Address = addr.String()
	}
	return st
}

func (a *adminTarget[M]) Shutdown() error { return a.srv.Shutdown() }

func engineConfig(sc config.ServerConfig) engine.Config {
	ec := engine.DefaultConfig()
	ec.Host = sc.Host
	ec.ReusePort = sc.ReusePort
	ec.NoDelay = sc.NoDelay
	ec.KeepAlive = sc.KeepAlive
	ec.ShutdownGrace = sc.ShutdownGrace
	ec.MaxConnections = sc.MaxConnections
	return ec
}

func echoHandler[M any]() connection.Handler[M, M] {
	return connection.HandlerFunc[M, M](func(_ context.Context, c *connection.Connection[M, M]) error {
		for msg, err := range c.Messages() {
			if err != nil {
				return err
			}
			if err := c.Send(msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// bindFailure turns a start error into an actionable error linked to the
// most specific issue guide. Cancellation is returned as is.
func bindFailure(err error, sc config.ServerConfig) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	resource := sc.Host.JoinPort(sc.Port)
	ec := issue.NewErrorContext().
		WithOperation("start server").
		WithResource(resource).
		Wrap(err)

	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		ec.WithIssue(issue.PortInUseId).
			WithSuggestion(fmt.Sprintf("Stop the process using %s or pass --port 0", resource))
	case errors.Is(err, os.ErrPermission):
		ec.WithIssue(issue.PermissionDeniedId).
			WithSuggestion("Use a port above 1023")
	case errors.Is(err, server.ErrBind):
		ec.WithIssue(issue.BindFailedId)
	case errors.Is(err, server.ErrIllegalState):
		ec.WithIssue(issue.IllegalStateId)
	}
	return ec.BuildError()
}
