// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tcpcore/tcpcore/internal/config"
	"github.com/tcpcore/tcpcore/pkg/types"
)

// newConfigCommand creates the `tcpcore config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tcpcore configuration",
		Long: `Manage tcpcore configuration.

Configuration is read from config.cue (or config.toml) in:
  - Linux: ~/.config/tcpcore/
  - macOS: ~/Library/Application Support/tcpcore/
  - Windows: %AppData%\tcpcore\

Environment variables override the file: TCPCORE_SERVER_PORT, TCPCORE_LOG_LEVEL, ...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: withIssueReport(app, func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := app.loadConfig(cmd.Context(), nil)
			if err != nil {
				return &ExitError{Code: types.ExitConfig, Err: err}
			}

			source := SubtitleStyle.Render("(defaults and environment)")
			if path != "" {
				source = path
			}
			fmt.Fprintf(app.stderr, "%s %s\n\n", TitleStyle.Render("# source:"), source)

			out, err := config.ToTOML(cfg)
			if err != nil {
				return err
			}
			_, err = app.stdout.Write(out)
			return err
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: withIssueReport(app, func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, written, err := config.CreateDefaultConfig(dir)
			if err != nil {
				return err
			}
			if !written {
				fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render("Config directory:"), dir)
			fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render("Config file:"), filepath.Join(dir, config.ConfigFileName+".cue"))
			if app.cfgFile != "" {
				fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render("Override (--config):"), app.cfgFile)
			}
			return nil
		},
	})

	return cfgCmd
}
