// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/tcpcore/tcpcore/pkg/types"
)

const (
	// CodecRaw passes byte chunks through unchanged.
	CodecRaw CodecName = "raw"
	// CodecLines frames messages by newline.
	CodecLines CodecName = "lines"
	// CodecFrames uses length-prefixed binary frames.
	CodecFrames CodecName = "frames"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidCodecName is returned when a CodecName value is not recognized.
	ErrInvalidCodecName = errors.New("invalid codec")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// CodecName selects the message codec the server and client install.
	CodecName string

	// InvalidCodecNameError wraps ErrInvalidCodecName.
	InvalidCodecNameError struct {
		Value CodecName
	}

	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// InvalidLogLevelError wraps ErrInvalidLogLevel.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects field-level validation errors.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the root configuration.
	Config struct {
		Server ServerConfig `json:"server" mapstructure:"server"`
		Health HealthConfig `json:"health" mapstructure:"health"`
		Admin  AdminConfig  `json:"admin" mapstructure:"admin"`
		Log    LogConfig    `json:"log" mapstructure:"log"`
	}

	// ServerConfig configures the listener and its connections.
	ServerConfig struct {
		// Host is the address to bind; empty binds every interface.
		Host types.HostAddress `json:"host" mapstructure:"host"`
		// Port is the port to bind; 0 lets the kernel choose.
		Port types.ListenPort `json:"port" mapstructure:"port"`
		// Codec selects the wire format.
		Codec CodecName `json:"codec" mapstructure:"codec"`
		// MaxFrameSize bounds a decoded line or frame in bytes.
		MaxFrameSize int `json:"max_frame_size" mapstructure:"max_frame_size"`
		// IdleTimeout closes connections silent for this long; 0 disables it.
		IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
		// ShutdownGrace is how long shutdown waits for connections to drain.
		ShutdownGrace time.Duration `json:"shutdown_grace" mapstructure:"shutdown_grace"`
		ReusePort     bool          `json:"reuse_port" mapstructure:"reuse_port"`
		NoDelay       bool          `json:"no_delay" mapstructure:"no_delay"`
		// KeepAlive is the TCP keep-alive period; negative disables it.
		KeepAlive      time.Duration `json:"keep_alive" mapstructure:"keep_alive"`
		MaxConnections int           `json:"max_connections" mapstructure:"max_connections"`
	}

	// HealthConfig configures the HTTP health endpoints.
	HealthConfig struct {
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
		Address string `json:"address" mapstructure:"address"`
	}

	// AdminConfig configures the SSH admin console.
	AdminConfig struct {
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
		Address string `json:"address" mapstructure:"address"`
		// Token is the console password; empty generates one at startup.
		Token string `json:"token" mapstructure:"token"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          7070,
			Codec:         CodecLines,
			MaxFrameSize:  4 << 20,
			ShutdownGrace: 5 * time.Second,
			NoDelay:       true,
			KeepAlive:     15 * time.Second,
		},
		Health: HealthConfig{
			Address: "127.0.0.1:7071",
		},
		Admin: AdminConfig{
			Address: "127.0.0.1:7072",
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
	}
}

// Validate returns an *InvalidConfigError listing every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Server.Host.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Server.Port.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Server.Codec.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.MaxFrameSize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_frame_size must be positive, got %d", c.Server.MaxFrameSize))
	}
	if c.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.idle_timeout must not be negative, got %s", c.Server.IdleTimeout))
	}
	if c.Server.ShutdownGrace < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_grace must not be negative, got %s", c.Server.ShutdownGrace))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must not be negative, got %d", c.Server.MaxConnections))
	}
	if c.Health.Enabled {
		if err := validateAddress(c.Health.Address); err != nil {
			errs = append(errs, fmt.Errorf("health.address %q: %w", c.Health.Address, err))
		}
	}
	if c.Admin.Enabled {
		if err := validateAddress(c.Admin.Address); err != nil {
			errs = append(errs, fmt.Errorf("admin.address %q: %w", c.Admin.Address, err))
		}
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func (n CodecName) String() string { return string(n) }

// Validate returns an error unless n is one of the known codecs.
func (n CodecName) Validate() error {
	switch n {
	case CodecRaw, CodecLines, CodecFrames:
		return nil
	default:
		return &InvalidCodecNameError{Value: n}
	}
}

func (e *InvalidCodecNameError) Error() string {
	return fmt.Sprintf("invalid codec %q (valid: raw, lines, frames)", e.Value)
}

func (e *InvalidCodecNameError) Unwrap() error { return ErrInvalidCodecName }

func (l LogLevel) String() string { return string(l) }

// Validate returns an error unless l is a known level.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// validateAddress checks a "host:port" listen address.
func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	_, err = types.ParseListenPort(port)
	return err
}
