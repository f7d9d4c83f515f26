// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/tcpcore/tcpcore/internal/config"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reaches configuration and output through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		verbose bool
		cfgFile string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig resolves configuration honouring --config and the given
// flag overrides.
func (a *App) loadConfig(ctx context.Context, overrides map[string]any) (*config.Config, string, error) {
	return a.Config.Resolve(ctx, config.LoadOptions{
		ConfigFilePath: a.cfgFile,
		Overrides:      overrides,
	})
}

// newLogger builds the CLI logger; --verbose forces debug level.
func (a *App) newLogger(level config.LogLevel) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "tcpcore",
	})
	if a.verbose {
		logger.SetLevel(log.DebugLevel)
		return logger
	}
	if lvl, err := log.ParseLevel(level.String()); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}
