// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package store

import (
	"context"
	"time"
)

// LearningStore persists learnings with soft-delete semantics. Every read
// operation excludes soft-deleted rows; SoftDelete and SoftDeleteMatching
// retain rows in storage and only set the deletion marker.
type LearningStore interface {
	Insert(ctx context.Context, l *Learning) error
	// Get returns a non-deleted learning by id, or a not-found error.
	Get(ctx context.Context, id string) (*Learning, error)
	List(ctx context.Context, q LearningQuery) ([]*Learning, error)
	// SoftDelete marks a learning deleted. Deleting a missing or
	// already-deleted id is a no-op, not an error.
	SoftDelete(ctx context.Context, id string) error
	// SoftDeleteMatching marks every non-deleted row matching the filter
	// and returns the ids of the rows it deleted.
	SoftDeleteMatching(ctx context.Context, f DeleteFilter) ([]string, error)
	Rescope(ctx context.Context, id, newScope string) (*Learning, error)
	// BumpRecall sets last_recalled_at and increments recall_count for the
	// given ids. The retrieval engine's inject path is the only caller.
	BumpRecall(ctx context.Context, ids []string, at time.Time) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SecretStore persists scoped secrets with (name, scope) upsert semantics.
type SecretStore interface {
	Put(ctx context.Context, name, scope, value string) (*Secret, error)
	Get(ctx context.Context, name, scope string) (*Secret, error)
	Close() error
}

// VectorIndex is the opaque vector-distance capability. Search returns the
// topK nearest non-deleted learnings restricted to the given scopes,
// ordered by ascending cosine distance.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, scopes []string, topK int) ([]Candidate, error)
	Close() error
}

// StateStore persists revisioned working state with immutable revision and
// event logs.
type StateStore interface {
	// Get returns the working state for a run, or a not-found error.
	Get(ctx context.Context, runID string) (*WorkingState, error)
	// Upsert writes revision expectedRevision+1 for the run, appending a
	// matching StateRevision row in the same transaction. expectedRevision
	// is the revision the caller last read (0 for a new run); a mismatch
	// against the committed revision fails with a conflict error.
	Upsert(ctx context.Context, runID string, payload StatePayload, updatedBy, changeSummary string, expectedRevision int) (*WorkingState, error)
	// Resolve marks the run resolved without incrementing its revision.
	// Resolving an already-resolved run succeeds and keeps the original
	// resolved_at.
	Resolve(ctx context.Context, runID string, at time.Time, updatedBy string) (*WorkingState, error)
	AppendEvent(ctx context.Context, ev *StateEvent) error
	Revisions(ctx context.Context, runID string, limit int) ([]*StateRevision, error)
	Events(ctx context.Context, runID string, limit int) ([]*StateEvent, error)
	Close() error
}
