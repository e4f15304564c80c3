// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chasewhip8/mnemonic-sub000/internal/store/sqlite"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

func TestSecretStore_UpsertSemantics(t *testing.T) {
	ctx := context.Background()
	ls := newLearningStore(t)
	ss := sqlite.NewSecretStoreWithDB(ls.DB())

	first, err := ss.Put(ctx, "api-key", "agent:planner", "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", first.Value)

	time.Sleep(5 * time.Millisecond)

	second, err := ss.Put(ctx, "api-key", "agent:planner", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Value)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))

	// Same name in a different scope is a distinct secret.
	other, err := ss.Put(ctx, "api-key", "shared", "global")
	require.NoError(t, err)
	assert.Equal(t, "global", other.Value)

	got, err := ss.Get(ctx, "api-key", "agent:planner")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Value)
}

func TestSecretStore_GetMissing(t *testing.T) {
	ls := newLearningStore(t)
	ss := sqlite.NewSecretStoreWithDB(ls.DB())

	_, err := ss.Get(context.Background(), "nope", "shared")
	require.Error(t, err)
	assert.True(t, mnerr.IsNotFound(err))
}
