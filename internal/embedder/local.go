// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// Compile-time interface check.
var _ Embedder = (*Local)(nil)

// defaultDimensions matches the all-MiniLM-L6-v2 family that the vector
// index is sized for.
const defaultDimensions = 384

// Local is a deterministic, offline embedder. It hashes the text and
// expands the hash through an LCG into a unit vector, so identical text
// always embeds identically. It carries no semantic signal; it exists so
// the store works without credentials and so tests stay hermetic.
type Local struct {
	dimensions int
}

// NewLocal creates a local embedder. A non-positive dims falls back to
// the default dimension count.
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = defaultDimensions
	}
	return &Local{dimensions: dims}
}

func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))

	seed := h.Sum64()
	vec := make([]float32, l.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vec), nil
}

func (l *Local) Dimensions() int {
	return l.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	inv := 1 / float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v * inv
	}
	return out
}
