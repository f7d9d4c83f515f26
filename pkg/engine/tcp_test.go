// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/tcpcore/tcpcore/internal/testutil"
	"github.com/tcpcore/tcpcore/pkg/types"
)

func newTestEngine(opts ...Option) *TCP {
	opts = append([]Option{WithHost("127.0.0.1"), WithLogger(testutil.DiscardLogger())}, opts...)
	return NewTCP(opts...)
}

func echoInit(ctx context.Context, conn net.Conn) {
	_, _ = io.Copy(conn, conn)
}

func TestBind_EphemeralPort(t *testing.T) {
	t.Parallel()

	b, err := newTestEngine().Bind(context.Background(), 0, echoInit)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	defer b.Close()

	addr, ok := b.Addr().(*net.TCPAddr)
	if !ok || addr.Port == 0 {
		t.Fatalf("expected a bound TCP port, got %v", b.Addr())
	}

	conn := testutil.MustDial(t, b.Addr())
	if _, err := conn.Write([]byte("ping\n")); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "ping\n" {
		t.Errorf("echo = %q, want %q", line, "ping\n")
	}
}

func TestBind_Errors(t *testing.T) {
	t.Parallel()

	t.Run("nil initializer", func(t *testing.T) {
		t.Parallel()
		if _, err := newTestEngine().Bind(context.Background(), 0, nil); err == nil {
			t.Error("expected error for nil initializer")
		}
	})

	t.Run("invalid port", func(t *testing.T) {
		t.Parallel()
		_, err := newTestEngine().Bind(context.Background(), 70000, echoInit)
		if !errors.Is(err, types.ErrInvalidListenPort) {
			t.Errorf("expected ErrInvalidListenPort, got %v", err)
		}
	})

	t.Run("port in use", func(t *testing.T) {
		t.Parallel()

		occupied, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer occupied.Close()

		port := types.ListenPort(occupied.Addr().(*net.TCPAddr).Port)
		e := newTestEngine(WithConfig(Config{Host: "127.0.0.1"}))
		if _, err := e.Bind(context.Background(), port, echoInit); err == nil {
			t.Error("expected bind to fail on an occupied port")
		}
	})
}

func TestListener_CloseClosesConnections(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	cancelled := make(chan struct{})
	b, err := newTestEngine().Bind(context.Background(), 0, func(ctx context.Context, conn net.Conn) {
		close(entered)
		<-ctx.Done()
		close(cancelled)
	})
	if err != nil {
		t.Fatal(err)
	}

	conn := testutil.MustDial(t, b.Addr())
	testutil.Receive(t, entered, "initializer to run")

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	testutil.Receive(t, cancelled, "connection context cancellation")
	testutil.Receive(t, b.Done(), "done channel")

	// The engine closed the server side of the socket.
	_ = conn.SetReadDeadline(time.Now().Add(testutil.DefaultTimeout))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("expected read error after engine close")
	}

	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestListener_ShutdownGrace(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	finished := make(chan struct{})
	b, err := newTestEngine(WithShutdownGrace(testutil.DefaultTimeout)).Bind(context.Background(), 0,
		func(ctx context.Context, conn net.Conn) {
			<-release
			close(finished)
		})
	if err != nil {
		t.Fatal(err)
	}

	testutil.MustDial(t, b.Addr())
	l := b.(*Listener)
	testutil.Eventually(t, func() bool { return l.Active() == 1 }, "connection to become active")

	closed := make(chan error, 1)
	go func() { closed <- b.Close() }()

	select {
	case <-closed:
		t.Fatal("Close returned before the active connection finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	testutil.Receive(t, finished, "handler to finish")
	if err := testutil.Receive(t, closed, "Close to return"); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestListener_PanicIsolated(t *testing.T) {
	t.Parallel()

	calls := make(chan struct{}, 2)
	b, err := newTestEngine().Bind(context.Background(), 0, func(ctx context.Context, conn net.Conn) {
		calls <- struct{}{}
		panic("initializer blew up")
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	testutil.MustDial(t, b.Addr())
	testutil.Receive(t, calls, "first initializer call")
	testutil.MustDial(t, b.Addr())
	testutil.Receive(t, calls, "second initializer call")
}

func TestListener_MaxConnections(t *testing.T) {
	t.Parallel()

	hold := make(chan struct{})
	b, err := newTestEngine(WithMaxConnections(1)).Bind(context.Background(), 0, func(ctx context.Context, conn net.Conn) {
		select {
		case <-hold:
		case <-ctx.Done():
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	defer close(hold)

	testutil.MustDial(t, b.Addr())
	l := b.(*Listener)
	testutil.Eventually(t, func() bool { return l.Active() == 1 }, "first connection to become active")

	rejected := testutil.MustDial(t, b.Addr())
	_ = rejected.SetReadDeadline(time.Now().Add(testutil.DefaultTimeout))
	if _, err := rejected.Read(make([]byte, 1)); err == nil {
		t.Error("expected the second connection to be closed")
	}
	if l.Active() != 1 {
		t.Errorf("Active() = %d, want 1", l.Active())
	}
}

func TestBind_ReusePort(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("SO_REUSEPORT load sharing is only exercised on linux")
	}

	e := newTestEngine(WithReusePort(true))
	first, err := e.Bind(context.Background(), 0, echoInit)
	if err != nil {
		t.Fatalf("first Bind() error = %v", err)
	}
	defer first.Close()

	port := types.ListenPort(first.Addr().(*net.TCPAddr).Port)
	second, err := e.Bind(context.Background(), port, echoInit)
	if err != nil {
		t.Fatalf("second Bind() on shared port error = %v", err)
	}
	defer second.Close()
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	d := nextBackoff(0)
	if d != minAcceptBackoff {
		t.Errorf("first backoff = %s, want %s", d, minAcceptBackoff)
	}
	for range 20 {
		d = nextBackoff(d)
	}
	if d != maxAcceptBackoff {
		t.Errorf("backoff should cap at %s, got %s", maxAcceptBackoff, d)
	}
}
