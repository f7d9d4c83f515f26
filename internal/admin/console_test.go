// SPDX-License-Identifier: MPL-2.0

package admin

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	gossh "golang.org/x/crypto/ssh"

	"github.com/tcpcore/tcpcore/internal/core/serverbase"
	"github.com/tcpcore/tcpcore/internal/testutil"
)

type fakeTarget struct {
	shutdowns atomic.Int32
	failWith  error
}

func (f *fakeTarget) Status() Status {
	return Status{
		State:       serverbase.StateStarted,
		Address:     "127.0.0.1:7070",
		Connections: 3,
		BytesIn:     42,
		BytesOut:    40,
	}
}

func (f *fakeTarget) Shutdown() error {
	f.shutdowns.Add(1)
	return f.failWith
}

func startConsole(t *testing.T, target Target) *Console {
	t.Helper()

	c, err := New(Config{Address: "127.0.0.1:0"}, target, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func runCommand(t *testing.T, c *Console, password, cmd string) (string, error) {
	t.Helper()

	client, err := gossh.Dial("tcp", c.Addr().String(), &gossh.ClientConfig{
		User:            "admin",
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(), //nolint:gosec // test-only loopback server
		Timeout:         testutil.DefaultTimeout,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer func() { _ = sess.Close() }()

	out, err := sess.CombinedOutput(cmd)
	return string(out), err
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	a, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken() error = %v", err)
	}
	b, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken() error = %v", err)
	}

	if len(a) != tokenBytes*2 {
		t.Errorf("token length = %d, want %d", len(a), tokenBytes*2)
	}
	if a == b {
		t.Error("two generated tokens are equal")
	}
}

func TestNewKeepsExplicitToken(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Token: "secret"}, &fakeTarget{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Token() != "secret" {
		t.Errorf("Token() = %q, want %q", c.Token(), "secret")
	}
	if c.cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v, want %v", c.cfg.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if c.Addr() != nil {
		t.Errorf("Addr() before start = %v, want nil", c.Addr())
	}
}

func TestConsoleStartStop(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Address: "127.0.0.1:0"}, &fakeTarget{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if c.State() != serverbase.StateStarted {
		t.Errorf("State() = %s, want %s", c.State(), serverbase.StateStarted)
	}
	if c.Addr() == nil {
		t.Fatal("Addr() = nil after start")
	}

	if err := c.Start(t.Context()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if c.State() != serverbase.StateShutdown {
		t.Errorf("State() = %s, want %s", c.State(), serverbase.StateShutdown)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	c, err := New(Config{}, &fakeTarget{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestStartWithCancelledContext(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Address: "127.0.0.1:0"}, &fakeTarget{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := c.Start(ctx); err == nil {
		t.Fatal("Start() with cancelled context should fail")
	}
	if c.State() != serverbase.StateCreated {
		t.Errorf("State() = %s, want %s", c.State(), serverbase.StateCreated)
	}
}

func TestStartWithUsedPort(t *testing.T) {
	t.Parallel()

	first := startConsole(t, &fakeTarget{})

	second, err := New(Config{Address: first.Addr().String()}, &fakeTarget{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := second.Start(t.Context()); err == nil {
		t.Fatal("Start() on a used port should fail")
	}
	if second.State() != serverbase.StateCreated {
		t.Errorf("State() = %s, want %s", second.State(), serverbase.StateCreated)
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	c := startConsole(t, &fakeTarget{})

	out, err := runCommand(t, c, c.Token(), "status")
	if err != nil {
		t.Fatalf("status error = %v (output %q)", err, out)
	}
	for _, want := range []string{"state:       started", "address:     127.0.0.1:7070", "connections: 3", "bytes_in:    42"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestShutdownCommand(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{}
	c := startConsole(t, target)

	out, err := runCommand(t, c, c.Token(), "shutdown")
	if err != nil {
		t.Fatalf("shutdown error = %v (output %q)", err, out)
	}
	if target.shutdowns.Load() != 1 {
		t.Errorf("Shutdown calls = %d, want 1", target.shutdowns.Load())
	}
	if !strings.Contains(out, "server shut down") {
		t.Errorf("output = %q", out)
	}
}

func TestShutdownCommandFailure(t *testing.T) {
	t.Parallel()

	c := startConsole(t, &fakeTarget{failWith: errors.New("already stopped")})

	out, err := runCommand(t, c, c.Token(), "shutdown")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 1 {
		t.Fatalf("error = %v, want exit status 1", err)
	}
	if !strings.Contains(out, "already stopped") {
		t.Errorf("output = %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	c := startConsole(t, &fakeTarget{})

	out, err := runCommand(t, c, c.Token(), "reboot")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 2 {
		t.Fatalf("error = %v, want exit status 2", err)
	}
	if !strings.Contains(out, "unknown command") {
		t.Errorf("output = %q", out)
	}
}

func TestWrongToken(t *testing.T) {
	t.Parallel()

	c := startConsole(t, &fakeTarget{})

	if _, err := runCommand(t, c, "wrong", "status"); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	got := FormatStatus(Status{State: serverbase.StateShutdown, Address: "x:1", BytesOut: 7})
	want := "state:       shutdown\naddress:     x:1\nconnections: 0\nbytes_in:    0\nbytes_out:   7\n"
	if got != want {
		t.Errorf("FormatStatus() =\n%s\nwant\n%s", got, want)
	}
}
