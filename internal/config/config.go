// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// Config is the top-level Mnemonic configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedder  EmbedderConfig  `mapstructure:"embedder"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig controls how Mnemonic listens for connections.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig selects the storage backend and where it keeps data.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"`
	Path             string `mapstructure:"path"`
	VectorDimensions int    `mapstructure:"vector_dimensions"`
}

// EmbedderConfig holds the embedding provider and its credentials.
type EmbedderConfig struct {
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
}

// RetentionConfig sets the sweep schedule and the tier thresholds.
type RetentionConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	SessionMaxAgeDays int           `mapstructure:"session_max_age_days"`
	AgentMaxAgeDays   int           `mapstructure:"agent_max_age_days"`
	MinConfidence     float64       `mapstructure:"min_confidence"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MNEMONIC_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.vector_dimensions", 384)
	v.SetDefault("embedder.provider", "local")
	v.SetDefault("embedder.model", "")
	v.SetDefault("retention.interval", "24h")
	v.SetDefault("retention.session_max_age_days", 7)
	v.SetDefault("retention.agent_max_age_days", 30)
	v.SetDefault("retention.min_confidence", 0.3)

	// Environment
	v.SetEnvPrefix("MNEMONIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, mnerr.Errorf(mnerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns every
// validation error found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedder()...)
	errs = append(errs, c.validateRetention()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}

	if c.Storage.VectorDimensions < 1 {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: storage.vector_dimensions must be positive, got %d", c.Storage.VectorDimensions))
	}

	return errs
}

func (c *Config) validateEmbedder() []error {
	var errs []error

	validProviders := map[string]bool{"local": true, "openai": true}
	if !validProviders[c.Embedder.Provider] {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: embedder.provider must be one of [local, openai], got %q", c.Embedder.Provider))
	}

	if c.Embedder.Provider == "openai" && c.Embedder.APIKey == "" {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: embedder.api_key must be set when embedder.provider is openai"))
	}

	return errs
}

func (c *Config) validateRetention() []error {
	var errs []error

	if c.Retention.Interval <= 0 {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: retention.interval must be positive, got %s", c.Retention.Interval))
	}
	if c.Retention.SessionMaxAgeDays < 1 {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: retention.session_max_age_days must be at least 1, got %d", c.Retention.SessionMaxAgeDays))
	}
	if c.Retention.AgentMaxAgeDays < 1 {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: retention.agent_max_age_days must be at least 1, got %d", c.Retention.AgentMaxAgeDays))
	}
	if c.Retention.MinConfidence < 0 || c.Retention.MinConfidence > 1 {
		errs = append(errs, mnerr.Errorf(mnerr.CodeConfigValidateInvalidValue,
			"config: retention.min_confidence must be in [0, 1], got %g", c.Retention.MinConfidence))
	}

	return errs
}
