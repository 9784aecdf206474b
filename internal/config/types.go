// Package config loads the launcher's Lua configuration.
//
// The configuration is a single global table evaluated in a sandboxed
// gopher-lua VM with a read-only platform table available:
//
//	launcher = {
//	  app = "spectral",
//	  log = { level = platform.when(platform.is_windows, "debug") or "info" },
//	  manifest = { keyring = "release.asc", require_signature = true },
//	}
//
// Every field is optional. A missing file yields Default().
package config

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config is the launcher configuration.
type Config struct {
	// App names the per-user data directory
	App string `yaml:"app"`

	// DataDir overrides the platform data directory
	DataDir string `yaml:"data_dir,omitempty"`

	// UserAgent is sent with every HTTP request
	UserAgent string `yaml:"user_agent"`

	// InsecureTLS disables certificate verification for https sources
	InsecureTLS bool `yaml:"insecure_tls,omitempty"`

	// ChunkSize is the download copy buffer size in bytes
	ChunkSize int `yaml:"chunk_size"`

	// Args are appended to the entry point's own arguments for exec entry points
	Args []string `yaml:"args,omitempty"`

	Log      LogConfig      `yaml:"log"`
	Manifest ManifestConfig `yaml:"manifest"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ManifestConfig controls where descriptors live and how remote ones are trusted.
type ManifestConfig struct {
	LocalName        string `yaml:"local_name"`
	RemoteName       string `yaml:"remote_name"`
	Keyring          string `yaml:"keyring,omitempty"`
	RequireSignature bool   `yaml:"require_signature,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App:       DefaultApp,
		UserAgent: DefaultUserAgent,
		ChunkSize: DefaultChunkSize,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Manifest: ManifestConfig{
			LocalName:  DefaultLocalName,
			RemoteName: DefaultRemoteName,
		},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := validateName("app", c.App); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	if err := validateName("manifest.local_name", c.Manifest.LocalName); err != nil {
		return err
	}
	if c.Manifest.RemoteName == "" {
		return errors.New("manifest.remote_name cannot be empty")
	}
	if c.Manifest.RequireSignature && c.Manifest.Keyring == "" {
		return errors.New("manifest.require_signature needs manifest.keyring")
	}

	return nil
}

// validateName rejects values that would escape the directory they name a file in.
func validateName(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if strings.ContainsAny(v, `/\`) || v == "." || v == ".." || path.Clean(v) != v {
		return fmt.Errorf("%s must be a plain name, got %q", field, v)
	}
	return nil
}
