// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/tcpcore/tcpcore/internal/cueutil"
	"github.com/tcpcore/tcpcore/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "tcpcore"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// EnvPrefix prefixes environment overrides, e.g. TCPCORE_SERVER_PORT.
	EnvPrefix = "TCPCORE"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the tcpcore configuration directory under the platform's
// user config directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// loadWithOptions resolves the configuration and reports which file, if any,
// it was read from.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := mergeFile(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE or TOML syntax").
				WithSuggestion("Run 'tcpcore config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("parse configuration").
			WithResource(path).
			WithIssue(issue.ConfigInvalidId).
			Wrap(err).
			BuildError()
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigInvalidId).
			WithSuggestion("Fix the listed fields in the config file, environment or flags").
			Wrap(err).
			BuildError()
	}

	return &cfg, path, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host.String())
	v.SetDefault("server.port", int(d.Server.Port))
	v.SetDefault("server.codec", d.Server.Codec.String())
	v.SetDefault("server.max_frame_size", d.Server.MaxFrameSize)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_grace", d.Server.ShutdownGrace)
	v.SetDefault("server.reuse_port", d.Server.ReusePort)
	v.SetDefault("server.no_delay", d.Server.NoDelay)
	v.SetDefault("server.keep_alive", d.Server.KeepAlive)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("health.enabled", d.Health.Enabled)
	v.SetDefault("health.address", d.Health.Address)
	v.SetDefault("admin.enabled", d.Admin.Enabled)
	v.SetDefault("admin.address", d.Admin.Address)
	v.SetDefault("admin.token", d.Admin.Token)
	v.SetDefault("log.level", d.Log.Level.String())
}

// resolvePath picks the config file: the explicit path, then the config
// directory, then the working directory. An empty result means defaults only.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'tcpcore config init' to create a default file").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	for _, dir := range []string{cfgDir, "."} {
		for _, ext := range []string{"cue", "toml"} {
			candidate := filepath.Join(dir, ConfigFileName+"."+ext)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", nil
}

func mergeFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var m map[string]any
	switch filepath.Ext(path) {
	case ".toml":
		if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
			return err
		}
		if err := toml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	default:
		m, err = cueutil.DecodeMap(configSchema, data, "#Config",
			cueutil.WithFilename(path),
			cueutil.WithConcrete(false),
		)
		if err != nil {
			return err
		}
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config.cue into dir unless a file
// already exists there. It returns the file path and whether it was written.
func CreateDefaultConfig(dir string) (string, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+".cue")
	if fileExists(cfgPath) {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, true, nil
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// tcpcore configuration\n\n")

	sb.WriteString("server: {\n")
	fmt.Fprintf(&sb, "\thost:            %q\n", cfg.Server.Host)
	fmt.Fprintf(&sb, "\tport:            %d\n", cfg.Server.Port)
	fmt.Fprintf(&sb, "\tcodec:           %q\n", cfg.Server.Codec)
	fmt.Fprintf(&sb, "\tmax_frame_size:  %d\n", cfg.Server.MaxFrameSize)
	fmt.Fprintf(&sb, "\tidle_timeout:    %q\n", cfg.Server.IdleTimeout)
	fmt.Fprintf(&sb, "\tshutdown_grace:  %q\n", cfg.Server.ShutdownGrace)
	fmt.Fprintf(&sb, "\treuse_port:      %v\n", cfg.Server.ReusePort)
	fmt.Fprintf(&sb, "\tno_delay:        %v\n", cfg.Server.NoDelay)
	fmt.Fprintf(&sb, "\tkeep_alive:      %q\n", cfg.Server.KeepAlive)
	fmt.Fprintf(&sb, "\tmax_connections: %d\n", cfg.Server.MaxConnections)
	sb.WriteString("}\n")

	sb.WriteString("\nhealth: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Health.Enabled)
	fmt.Fprintf(&sb, "\taddress: %q\n", cfg.Health.Address)
	sb.WriteString("}\n")

	sb.WriteString("\nadmin: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Admin.Enabled)
	fmt.Fprintf(&sb, "\taddress: %q\n", cfg.Admin.Address)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nlog: level: %q\n", cfg.Log.Level)

	return sb.String()
}

type (
	tomlDocument struct {
		Server tomlServer `toml:"server"`
		Health tomlHealth `toml:"health"`
		Admin  tomlAdmin  `toml:"admin"`
		Log    tomlLog    `toml:"log"`
	}

	tomlServer struct {
		Host           string `toml:"host"`
		Port           int    `toml:"port"`
		Codec          string `toml:"codec"`
		MaxFrameSize   int    `toml:"max_frame_size"`
		IdleTimeout    string `toml:"idle_timeout"`
		ShutdownGrace  string `toml:"shutdown_grace"`
		ReusePort      bool   `toml:"reuse_port"`
		NoDelay        bool   `toml:"no_delay"`
		KeepAlive      string `toml:"keep_alive"`
		MaxConnections int    `toml:"max_connections"`
	}

	tomlHealth struct {
		Enabled bool   `toml:"enabled"`
		Address string `toml:"address"`
	}

	tomlAdmin struct {
		Enabled bool   `toml:"enabled"`
		Address string `toml:"address"`
		Token   string `toml:"token,omitempty"`
	}

	tomlLog struct {
		Level string `toml:"level"`
	}
)

// ToTOML renders cfg as a TOML document that mergeFile reads back.
// Durations are written in time.Duration string form.
func ToTOML(cfg *Config) ([]byte, error) {
	doc := tomlDocument{
		Server: tomlServer{
			Host:           cfg.Server.Host.String(),
			Port:           int(cfg.Server.Port),
			Codec:          cfg.Server.Codec.String(),
			MaxFrameSize:   cfg.Server.MaxFrameSize,
			IdleTimeout:    cfg.Server.IdleTimeout.String(),
			ShutdownGrace:  cfg.Server.ShutdownGrace.String(),
			ReusePort:      cfg.Server.ReusePort,
			NoDelay:        cfg.Server.NoDelay,
			KeepAlive:      cfg.Server.KeepAlive.String(),
			MaxConnections: cfg.Server.MaxConnections,
		},
		Health: tomlHealth{Enabled: cfg.Health.Enabled, Address: cfg.Health.Address},
		Admin:  tomlAdmin{Enabled: cfg.Admin.Enabled, Address: cfg.Admin.Address, Token: cfg.Admin.Token},
		Log:    tomlLog{Level: cfg.Log.Level.String()},
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config as TOML: %w", err)
	}
	return out, nil
}
