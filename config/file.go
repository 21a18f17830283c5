// Package config holds appctl's server settings: the immutable ServerConfig
// that selects a transport, and the optional appctl.yaml file the CLI reads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/appctl/paths"
)

// Defaults applied when appctl.yaml omits a value.
const (
	DefaultMaxConnections  = 64
	DefaultShutdownTimeout = 5 * time.Second
	DefaultHost            = "127.0.0.1"
)

// FileConfig is the on-disk configuration in appctl.yaml.
type FileConfig struct {
	Transport       TransportKind `yaml:"transport"`
	Path            string        `yaml:"path,omitempty"`
	Host            string        `yaml:"host,omitempty"`
	Port            int           `yaml:"port,omitempty"`
	MaxConnections  int           `yaml:"max_connections,omitempty"`
	Debug           bool          `yaml:"debug,omitempty"`
	LogFile         string        `yaml:"log_file,omitempty"`
	LogFormat       string        `yaml:"log_format,omitempty"`
	ShutdownTimeout *Duration     `yaml:"shutdown_timeout,omitempty"`
}

// Duration is a wrapper around time.Duration that implements YAML unmarshaling
// from human-readable strings like "5s", "2m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// DefaultFileConfig returns the settings used when no file exists.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Transport:      TransportLocal,
		Host:           DefaultHost,
		MaxConnections: DefaultMaxConnections,
	}
}

// LoadFile reads appctl.yaml from the config directory.
// Returns the defaults if the file does not exist.
func LoadFile() (*FileConfig, error) {
	fp, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFileFrom(fp)
}

// LoadFileFrom reads and validates the YAML config at fp.
// Returns the defaults if the file does not exist.
func LoadFileFrom(fp string) (*FileConfig, error) {
	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultFileConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultFileConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", fp, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", fp, err)
	}
	return cfg, nil
}

// applyDefaults fills zero values left by an explicit empty key in the file.
func (c *FileConfig) applyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportLocal
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
}

// Validate checks field values.
func (c *FileConfig) Validate() error {
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative, got %d", c.MaxConnections)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.ShutdownTimeout != nil && c.ShutdownTimeout.Duration < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative, got %s", c.ShutdownTimeout.Duration)
	}
	return c.ServerConfig().Validate()
}

// ServerConfig builds the transport selection described by the file.
func (c *FileConfig) ServerConfig() ServerConfig {
	switch c.Transport {
	case TransportTCP:
		return Network(c.Host, c.Port)
	case TransportLocal, "":
		return Local(c.Path)
	default:
		return ServerConfig{kind: c.Transport}
	}
}

// Shutdown returns the configured drain timeout or the default.
func (c *FileConfig) Shutdown() time.Duration {
	if c.ShutdownTimeout == nil {
		return DefaultShutdownTimeout
	}
	return c.ShutdownTimeout.Duration
}

// Save writes the config as YAML to fp, creating parent directories.
func (c *FileConfig) Save(fp string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(fp, data, 0644)
}
