// Package config provides configuration management for the file manager.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the complete file manager configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Index   IndexConfig   `yaml:"index" toml:"index"`
	Users   UsersConfig   `yaml:"users" toml:"users"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Mount   MountConfig   `yaml:"mount" toml:"mount"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// StorageConfig holds the root of the managed tree.
type StorageConfig struct {
	Root string `yaml:"root" toml:"root" validate:"required"`
}

// IndexConfig holds metadata index configuration.
type IndexConfig struct {
	SnapshotPath string `yaml:"snapshot_path" toml:"snapshot_path" validate:"required"`
	Backend      string `yaml:"backend" toml:"backend" validate:"oneof=json badger"`
	Strict       bool   `yaml:"strict" toml:"strict"`
	Watch        bool   `yaml:"watch" toml:"watch"`
}

// UsersConfig holds user identifiers.
type UsersConfig struct {
	Admin   string `yaml:"admin" toml:"admin" validate:"required"`
	Default string `yaml:"default" toml:"default" validate:"required"`
}

// ServerConfig holds remote surface configuration.
type ServerConfig struct {
	GRPCAddr        string `yaml:"grpc_addr" toml:"grpc_addr" validate:"required"`
	MetricsAddr     string `yaml:"metrics_addr" toml:"metrics_addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// MountConfig holds FUSE view configuration.
type MountConfig struct {
	Path string `yaml:"path" toml:"path"`
	User string `yaml:"user" toml:"user"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error fatal"`
	Format string `yaml:"format" toml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Root: "filesystem",
		},
		Index: IndexConfig{
			SnapshotPath: "filesystem.json",
			Backend:      "json",
			Strict:       false,
			Watch:        false,
		},
		Users: UsersConfig{
			Admin:   "admin",
			Default: "admin",
		},
		Server: ServerConfig{
			GRPCAddr:        ":9090",
			MetricsAddr:     "",
			ShutdownTimeout: "10s",
		},
		Mount: MountConfig{
			Path: "",
			User: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML or TOML file.
// The format is picked from the file extension; anything but .toml is read as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file, or returns default if file doesn't exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

var validate = validator.New()

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("invalid config: %s failed on '%s' (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// NormalizePaths converts the storage root and snapshot path to absolute paths.
func (c *Config) NormalizePaths() error {
	var err error

	if !filepath.IsAbs(c.Storage.Root) {
		c.Storage.Root, err = filepath.Abs(c.Storage.Root)
		if err != nil {
			return err
		}
	}

	if !filepath.IsAbs(c.Index.SnapshotPath) {
		c.Index.SnapshotPath, err = filepath.Abs(c.Index.SnapshotPath)
		if err != nil {
			return err
		}
	}

	if c.Mount.Path != "" && !filepath.IsAbs(c.Mount.Path) {
		c.Mount.Path, err = filepath.Abs(c.Mount.Path)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetShutdownTimeout returns the shutdown timeout as a time.Duration.
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
