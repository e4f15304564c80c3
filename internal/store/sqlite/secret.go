// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// Compile-time interface check.
var _ store.SecretStore = (*SecretStore)(nil)

// SecretStore implements store.SecretStore on a connection shared with
// the learning store. The secrets table is created by migrateMemory.
type SecretStore struct {
	db *sql.DB
}

// NewSecretStoreWithDB wraps an already-migrated memory database.
func NewSecretStoreWithDB(db *sql.DB) *SecretStore {
	return &SecretStore{db: db}
}

// Close is a no-op; the shared connection is closed by its owner.
func (s *SecretStore) Close() error {
	return nil
}

// Put upserts a secret: the same (name, scope) pair overwrites the value
// and bumps updated_at while preserving created_at.
func (s *SecretStore) Put(ctx context.Context, name, scope, value string) (*store.Secret, error) {
	now := toMillis(time.Now())

	const q = `INSERT INTO secrets (name, scope, value, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name, scope) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, name, scope, value, now, now); err != nil {
		return nil, classify(err, "upserting secret "+name)
	}

	return s.Get(ctx, name, scope)
}

// Get fetches a secret by its (name, scope) composite key.
func (s *SecretStore) Get(ctx context.Context, name, scope string) (*store.Secret, error) {
	const q = `SELECT name, scope, value, created_at, updated_at FROM secrets WHERE name = ? AND scope = ?`

	var sec store.Secret
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, q, name, scope).Scan(
		&sec.Name,
		&sec.Scope,
		&sec.Value,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mnerr.New(mnerr.CodeMemorySecretNotFound, "secret not found",
			mnerr.Field("name", name), mnerr.FieldScope(scope))
	}
	if err != nil {
		return nil, classify(err, "getting secret "+name)
	}

	sec.CreatedAt = fromMillis(createdAt)
	sec.UpdatedAt = fromMillis(updatedAt)
	return &sec, nil
}
