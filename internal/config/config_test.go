// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chasewhip8/mnemonic-sub000/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mnemonic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:18790", cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 384, cfg.Storage.VectorDimensions)
	assert.Equal(t, "local", cfg.Embedder.Provider)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Interval)
	assert.Equal(t, 7, cfg.Retention.SessionMaxAgeDays)
	assert.Equal(t, 30, cfg.Retention.AgentMaxAgeDays)
	assert.Equal(t, 0.3, cfg.Retention.MinConfidence)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: 0.0.0.0:9999
embedder:
  provider: openai
  api_key: sk-test
  model: text-embedding-3-large
retention:
  interval: 1h
  min_confidence: 0.5
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Listen)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.Model)
	assert.Equal(t, time.Hour, cfg.Retention.Interval)
	assert.Equal(t, 0.5, cfg.Retention.MinConfidence)
	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 7, cfg.Retention.SessionMaxAgeDays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MNEMONIC_SERVER_LISTEN", "127.0.0.1:7777")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", cfg.Server.Listen)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad listen address",
			yaml:    "server:\n  listen: not-an-address\n",
			wantErr: "host:port",
		},
		{
			name:    "port out of range",
			yaml:    "server:\n  listen: 127.0.0.1:99999\n",
			wantErr: "between 1 and 65535",
		},
		{
			name:    "unknown backend",
			yaml:    "storage:\n  backend: postgres\n",
			wantErr: "storage.backend",
		},
		{
			name:    "zero dimensions",
			yaml:    "storage:\n  vector_dimensions: 0\n",
			wantErr: "vector_dimensions",
		},
		{
			name:    "unknown embedder",
			yaml:    "embedder:\n  provider: cohere\n",
			wantErr: "embedder.provider",
		},
		{
			name:    "openai without key",
			yaml:    "embedder:\n  provider: openai\n",
			wantErr: "api_key",
		},
		{
			name:    "confidence above one",
			yaml:    "retention:\n  min_confidence: 1.5\n",
			wantErr: "min_confidence",
		},
		{
			name:    "zero session age",
			yaml:    "retention:\n  session_max_age_days: 0\n",
			wantErr: "session_max_age_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
