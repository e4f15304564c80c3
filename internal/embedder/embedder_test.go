// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedIsDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewLocal(0)

	a, err := e.Embed(ctx, "when deploying, run dry-run first")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "when deploying, run dry-run first")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, defaultDimensions)
}

func TestLocalEmbedDistinctTextsDiffer(t *testing.T) {
	ctx := context.Background()
	e := NewLocal(16)

	a, err := e.Embed(ctx, "alpha")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "beta")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 16)
	assert.Equal(t, 16, e.Dimensions())
}

func TestLocalEmbedReturnsUnitVector(t *testing.T) {
	ctx := context.Background()
	e := NewLocal(0)

	vec, err := e.Embed(ctx, "normalised")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantDims int
	}{
		{name: "default is local", cfg: Config{}, wantDims: defaultDimensions},
		{name: "explicit local", cfg: Config{Provider: "local", Dimensions: 64}, wantDims: 64},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: true},
		{name: "openai with key", cfg: Config{Provider: "openai", APIKey: "sk-test"}, wantDims: defaultDimensions},
		{name: "unknown provider", cfg: Config{Provider: "cohere"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDims, e.Dimensions())
		})
	}
}
