// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package server

import (
	"context"

	"github.com/Chasewhip8/mnemonic-sub000/internal/memory"
	"github.com/Chasewhip8/mnemonic-sub000/internal/retention"
	"github.com/Chasewhip8/mnemonic-sub000/internal/retrieval"
	"github.com/Chasewhip8/mnemonic-sub000/internal/state"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
)

// MemoryService is the slice of the memory service the routes need.
type MemoryService interface {
	Learn(ctx context.Context, in memory.LearnInput) (*store.Learning, error)
	Learnings(ctx context.Context, q store.LearningQuery) ([]*store.Learning, error)
	Delete(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, f store.DeleteFilter) (*memory.DeleteResult, error)
	Rescope(ctx context.Context, id, newScope string) (*store.Learning, error)
	Stats(ctx context.Context) (*store.Stats, error)
	PutSecret(ctx context.Context, name, scope, value string) (*store.Secret, error)
	GetSecret(ctx context.Context, name, scope string) (*store.Secret, error)
}

// RetrievalService is the slice of the retrieval engine the routes need.
type RetrievalService interface {
	Inject(ctx context.Context, scopes []string, contextText string, limit int, threshold float64, format string) *retrieval.InjectResult
	Query(ctx context.Context, scopes []string, text string, limit int) *retrieval.QueryResult
	InjectTrace(ctx context.Context, scopes []string, contextText string, limit int, threshold float64) *retrieval.TraceResult
	Neighbors(ctx context.Context, id string, threshold *float64, limit int) []retrieval.Neighbor
}

// StateService is the slice of the working-state service the routes need.
type StateService interface {
	Get(ctx context.Context, runID string) (*store.WorkingState, error)
	Upsert(ctx context.Context, runID string, payload store.StatePayload, updatedBy string) (*store.WorkingState, error)
	PatchState(ctx context.Context, runID string, patch state.Patch, updatedBy string) (*store.WorkingState, error)
	AddEvent(ctx context.Context, runID, eventType string, payload map[string]any, createdBy string) (string, error)
	Resolve(ctx context.Context, runID string, opts state.ResolveOptions) (*store.WorkingState, error)
	Revisions(ctx context.Context, runID string, limit int) ([]*store.StateRevision, error)
	Events(ctx context.Context, runID string, limit int) ([]*store.StateEvent, error)
}

// RetentionService triggers an on-demand retention sweep.
type RetentionService interface {
	Run(ctx context.Context) (*retention.Result, error)
}

// Services bundles the route dependencies.
type Services struct {
	Memory    MemoryService
	Retrieval RetrievalService
	State     StateService
	Retention RetentionService
}
