// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds blocking helpers.
const DefaultTimeout = 5 * time.Second

// Shutdowner is implemented by servers that release their socket on Shutdown.
type Shutdowner interface {
	Shutdown() error
}

// MustClose closes the given io.Closer.
// The test fails immediately if the close fails.
func MustClose(t testing.TB, c io.Closer) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
}

// MustShutdown shuts down the given server.
// Unlike MustClose, this logs errors but doesn't fail the test,
// as shutdown errors during cleanup are typically non-fatal.
func MustShutdown(t testing.TB, s Shutdowner) {
	t.Helper()
	if err := s.Shutdown(); err != nil {
		t.Logf("warning: shutdown returned error: %v", err)
	}
}

// DeferClose returns a cleanup function that closes the given io.Closer,
// logging any errors. Useful for defer statements in tests.
func DeferClose(t testing.TB, c io.Closer) func() {
	t.Helper()
	return func() {
		t.Helper()
		if err := c.Close(); err != nil {
			t.Logf("warning: close returned error: %v", err)
		}
	}
}

// DeferShutdown returns a cleanup function that shuts down the given server,
// logging any errors. Useful for defer statements in tests.
func DeferShutdown(t testing.TB, s Shutdowner) func() {
	t.Helper()
	return func() {
		t.Helper()
		if err := s.Shutdown(); err != nil {
			t.Logf("warning: shutdown returned error: %v", err)
		}
	}
}

// MustDial opens a TCP connection to addr and registers its close with t.Cleanup.
func MustDial(t testing.TB, addr net.Addr) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), DefaultTimeout)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// Eventually polls cond until it returns true or DefaultTimeout elapses.
func Eventually(t testing.TB, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", DefaultTimeout, msg)
}

// Receive waits for a value on ch, failing the test after DefaultTimeout.
func Receive[T any](t testing.TB, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(DefaultTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

// DiscardLogger returns a logger that drops every entry.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}
