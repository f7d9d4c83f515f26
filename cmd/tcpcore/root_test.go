// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tcpcore/tcpcore/internal/config"
	"github.com/tcpcore/tcpcore/internal/issue"
	"github.com/tcpcore/tcpcore/pkg/server"
	"github.com/tcpcore/tcpcore/pkg/types"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-01-15T10:00:00Z"

		want := "v1.2.3 (commit: abc1234, built: 2026-01-15T10:00:00Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback to dev when no build info", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		// Test binaries report Main.Version == "(devel)".
		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"nil", nil, types.ExitOK},
		{"explicit", &ExitError{Code: types.ExitConfig}, types.ExitConfig},
		{"bind", &server.BindError{Port: 80, Cause: errors.New("denied")}, types.ExitBind},
		{"wrapped bind", fmt.Errorf("start: %w", &server.BindError{Cause: errors.New("x")}), types.ExitBind},
		{"invalid config", &config.InvalidConfigError{}, types.ExitConfig},
		{"other", errors.New("boom"), types.ExitFailure},
		{"explicit zero", &ExitError{Err: errors.New("x")}, types.ExitFailure},
		{"explicit out of range", &ExitError{Code: 300}, types.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	err := &ExitError{Code: types.ExitBind, Err: cause}
	if err.Error() != "cause" || !errors.Is(err, cause) {
		t.Errorf("ExitError should expose its cause, got %q", err.Error())
	}
	if (&ExitError{Code: 3}).Error() != "exit status 3" {
		t.Errorf("unexpected message without cause")
	}
}

// execute runs the command tree with isolated output and config lookup.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{Stdout: &stdout, Stderr: &stderr})
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(out) != getVersionString() {
		t.Errorf("version printed %q", out)
	}
}

func TestConfigShowWithExplicitFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte(`server: {port: 9555, codec: "frames"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, stderr, err := execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, "port = 9555") || !strings.Contains(out, "codec = 'frames'") && !strings.Contains(out, `codec = "frames"`) {
		t.Errorf("config show output missing file values:\n%s", out)
	}
	if !strings.Contains(stderr, path) {
		t.Errorf("config show should name the source file, stderr:\n%s", stderr)
	}
}

func TestConfigShowInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte(`server: port: "not a number"`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := execute(t, "--config", path, "config", "show")
	if exitCodeFor(err) != types.ExitConfig {
		t.Errorf("exit code = %d, want %d (err %v)", exitCodeFor(err), types.ExitConfig, err)
	}
	if issue.FromError(err) == nil {
		t.Errorf("config errors should link an issue guide: %v", err)
	}
}

func TestReportIssue(t *testing.T) {
	orig := issueStyle
	issueStyle = "notty"
	t.Cleanup(func() { issueStyle = orig })

	err := issue.NewErrorContext().
		WithOperation("start server").
		WithSuggestion("Pick another port").
		WithIssue(issue.PortInUseId).
		Wrap(errors.New("address already in use")).
		Build()

	var buf bytes.Buffer
	reportIssue(&buf, err, false)
	out := buf.String()
	if !strings.Contains(out, "Pick another port") {
		t.Errorf("missing suggestion:\n%s", out)
	}
	if !strings.Contains(out, "Port already in use") {
		t.Errorf("missing rendered guide:\n%s", out)
	}

	buf.Reset()
	reportIssue(&buf, errors.New("plain"), true)
	if buf.Len() != 0 {
		t.Errorf("plain errors should print nothing extra, got %q", buf.String())
	}
}
