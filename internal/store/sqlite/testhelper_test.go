// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
)

const testDims = 8

// testDir creates a temp directory for a test with cleanup.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "mnemonic-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// unitVec builds a deterministic unit vector for the given seed.
func unitVec(seed int) []float32 {
	vec := make([]float32, testDims)
	var norm float64
	for i := range vec {
		v := float32((seed*31+i*7)%13) + 1
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

// testLearning builds a learning row with sane defaults.
func testLearning(id, scope string, seed int) *store.Learning {
	return &store.Learning{
		ID:         id,
		Trigger:    "deploying to production",
		Learning:   "run dry-run first",
		Scope:      scope,
		Confidence: 0.9,
		Embedding:  unitVec(seed),
		CreatedAt:  time.Now(),
	}
}
