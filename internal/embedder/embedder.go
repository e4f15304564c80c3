// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

// Package embedder converts text into fixed-dimension vectors for the
// memory index. Implementations: Local (deterministic, no network) and
// OpenAI (hosted embeddings API).
package embedder

import (
	"context"

	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// Embedder converts text to a vector embedding.
type Embedder interface {
	// Embed returns the embedding for text. The returned slice always has
	// exactly Dimensions() elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding size.
	Dimensions() int
}

// Config selects and configures an embedder provider.
type Config struct {
	Provider   string // "local" or "openai"
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// New builds an Embedder from config. An empty provider defaults to
// "local" so a fresh install works without credentials.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocal(cfg.Dimensions), nil
	case "openai":
		return NewOpenAI(cfg)
	default:
		return nil, mnerr.New(mnerr.CodeConfigValidateInvalidValue,
			"unknown embedder provider", mnerr.Field("provider", cfg.Provider))
	}
}
