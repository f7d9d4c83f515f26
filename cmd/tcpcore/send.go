// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tcpcore/tcpcore/internal/config"
	"github.com/tcpcore/tcpcore/internal/issue"
	"github.com/tcpcore/tcpcore/pkg/client"
	"github.com/tcpcore/tcpcore/pkg/codec"
	"github.com/tcpcore/tcpcore/pkg/pipeline"
	"github.com/tcpcore/tcpcore/pkg/types"
)

type sendOptions struct {
	address string
	message string
	codec   config.CodecName
	api     uint16
	maxSize int
}

func newSendCommand(app *App) *cobra.Command {
	var (
		codecName string
		api       uint16
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <address> <message...>",
		Short: "Send one message and print the reply",
		Long: `Dial a tcpcore server, send one message encoded with the selected codec and
print the decoded reply. With the frames codec, --api sets the frame API key.`,
		Args: cobra.MinimumNArgs(2),
	}

	cmd.Flags().StringVar(&codecName, "codec", "", "message codec: raw, lines or frames (default from server.codec)")
	cmd.Flags().Uint16Var(&api, "api", 0, "frame API key (frames codec only)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "overall timeout for dial, send and reply")

	cmd.RunE = withIssueReport(app, func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("codec") {
			overrides["server.codec"] = codecName
		}
		cfg, _, err := app.loadConfig(cmd.Context(), overrides)
		if err != nil {
			return &ExitError{Code: types.ExitConfig, Err: err}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		reply, err := runSend(ctx, sendOptions{
			address: args[0],
			message: strings.Join(args[1:], " "),
			codec:   cfg.Server.Codec,
			api:     api,
			maxSize: cfg.Server.MaxFrameSize,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(app.stdout, reply)
		return err
	})

	return cmd
}

// runSend performs one request/reply exchange and returns the reply as text.
func runSend(ctx context.Context, opts sendOptions) (string, error) {
	switch opts.codec {
	case config.CodecRaw:
		reply, err := exchange(ctx, opts, codec.Raw(), []byte(opts.message))
		return string(reply), err
	case config.CodecLines:
		return exchange(ctx, opts, codec.Lines(opts.maxSize), opts.message)
	case config.CodecFrames:
		reply, err := exchange(ctx, opts, codec.Frames(codec.WithMaxFrameSize(opts.maxSize)),
			codec.Frame{API: opts.api, Payload: []byte(opts.message)})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[api %d] %s", reply.API, reply.Payload), nil
	default:
		return "", issue.NewErrorContext().
			WithOperation("select codec").
			WithResource(opts.codec.String()).
			WithIssue(issue.UnknownCodecId).
			Wrap(&config.InvalidCodecNameError{Value: opts.codec}).
			BuildError()
	}
}

func exchange[M any](ctx context.Context, opts sendOptions, c codec.Codec[M, M], msg M) (M, error) {
	var zero M

	conn, err := client.Dial(ctx, opts.address, pipeline.WithCodec[M, M](c))
	if err != nil {
		return zero, issue.NewErrorContext().
			WithOperation("connect").
			WithResource(opts.address).
			WithIssue(issue.ConnectFailedId).
			Wrap(err).
			BuildError()
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.Conn().SetDeadline(deadline); err != nil {
			return zero, fmt.Errorf("set deadline: %w", err)
		}
	}

	if err := conn.Send(msg); err != nil {
		return zero, fmt.Errorf("send to %s: %w", opts.address, err)
	}
	reply, err := conn.Receive()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return zero, fmt.Errorf("server at %s closed the connection without replying", opts.address)
		}
		return zero, fmt.Errorf("receive from %s: %w", opts.address, err)
	}
	return reply, nil
}
