// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package retention_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chasewhip8/mnemonic-sub000/internal/retention"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store/sqlite"
)

const testDims = 4

func newLearningStore(t *testing.T) *sqlite.LearningStore {
	t.Helper()

	ls, err := sqlite.NewLearningStore(filepath.Join(t.TempDir(), "memory.db"), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })
	return ls
}

func insert(t *testing.T, ls *sqlite.LearningStore, id, scopeName string, confidence float64, age time.Duration) {
	t.Helper()

	require.NoError(t, ls.Insert(context.Background(), &store.Learning{
		ID:         id,
		Trigger:    "t",
		Learning:   "l",
		Scope:      scopeName,
		Confidence: confidence,
		Embedding:  []float32{1, 0, 0, 0},
		CreatedAt:  time.Now().Add(-age),
	}))
}

func TestRunAppliesAllTiers(t *testing.T) {
	ctx := context.Background()
	ls := newLearningStore(t)

	insert(t, ls, "old-session", "session:run-1", 0.9, 8*24*time.Hour)
	insert(t, ls, "fresh-session", "session:run-2", 0.9, time.Hour)
	insert(t, ls, "old-agent", "agent:planner", 0.9, 31*24*time.Hour)
	insert(t, ls, "fresh-agent", "agent:planner", 0.9, 24*time.Hour)
	insert(t, ls, "doubtful", "shared", 0.1, time.Hour)
	insert(t, ls, "solid", "shared", 0.9, time.Hour)

	p := retention.NewPolicy(ls, store.DefaultRetryPolicy(), retention.DefaultConfig(), nil)
	res, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Deleted)
	assert.Len(t, res.Reasons, 3)

	for _, id := range []string{"old-session", "old-agent", "doubtful"} {
		_, err := ls.Get(ctx, id)
		assert.Error(t, err, id)
	}
	for _, id := range []string{"fresh-session", "fresh-agent", "solid"} {
		_, err := ls.Get(ctx, id)
		assert.NoError(t, err, id)
	}
}

func TestRunCountsMultiTierRowOnce(t *testing.T) {
	ctx := context.Background()
	ls := newLearningStore(t)

	// Old session scope AND low confidence: the age tier claims it first.
	insert(t, ls, "both", "session:run-1", 0.1, 8*24*time.Hour)

	p := retention.NewPolicy(ls, store.DefaultRetryPolicy(), retention.DefaultConfig(), nil)
	res, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Deleted)
	assert.Len(t, res.Reasons, 1)
}

func TestRunNothingToDelete(t *testing.T) {
	ctx := context.Background()
	ls := newLearningStore(t)
	insert(t, ls, "solid", "shared", 0.9, time.Hour)

	p := retention.NewPolicy(ls, store.DefaultRetryPolicy(), retention.DefaultConfig(), nil)
	res, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, res.Deleted)
	assert.Empty(t, res.Reasons)
}

func TestStartSweepsImmediatelyAndStops(t *testing.T) {
	ctx := context.Background()
	ls := newLearningStore(t)
	insert(t, ls, "doubtful", "shared", 0.1, time.Hour)

	cfg := retention.DefaultConfig()
	cfg.Interval = time.Hour
	p := retention.NewPolicy(ls, store.DefaultRetryPolicy(), cfg, nil)

	p.Start(ctx)
	defer p.Stop()

	_, err := ls.Get(ctx, "doubtful")
	assert.Error(t, err)

	p.Stop()
	p.Stop() // safe to call twice
}
