// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

// Package memory implements the learning and secret write/read surface on
// top of the storage layer: creating embedded learnings, listing, soft
// deletion (single and filtered bulk), rescoping, stats, and scoped
// secret upsert.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Chasewhip8/mnemonic-sub000/internal/embedder"
	"github.com/Chasewhip8/mnemonic-sub000/internal/scope"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// DefaultConfidence is assigned to learnings created without an explicit
// confidence score.
const DefaultConfidence = 0.5

// EmbeddingText renders the canonical text a learning is embedded from.
// Inject uses the same rendering for prompt output, so stored vectors and
// recalled text always agree.
func EmbeddingText(trigger, learning string) string {
	return fmt.Sprintf("When %s, %s", trigger, learning)
}

// LearnInput carries the caller-supplied fields for a new learning.
type LearnInput struct {
	Scope      string
	Trigger    string
	Learning   string
	Confidence *float64
	Reason     string
	Source     string
}

// DeleteResult reports a bulk soft-delete outcome.
type DeleteResult struct {
	Deleted int
	IDs     []string
}

// Service owns learning and secret persistence. Every storage call goes
// through the retry policy; embedding failures on the write path are
// surfaced because an un-embedded learning is unretrievable.
type Service struct {
	learnings store.LearningStore
	secrets   store.SecretStore
	embed     embedder.Embedder
	retry     store.RetryPolicy
	logger    *slog.Logger
}

// NewService creates a memory service.
func NewService(learnings store.LearningStore, secrets store.SecretStore, embed embedder.Embedder, retry store.RetryPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		learnings: learnings,
		secrets:   secrets,
		embed:     embed,
		retry:     retry,
		logger:    logger,
	}
}

// Learn embeds and persists a new learning. Trigger, learning text, and a
// valid scope are required; confidence defaults when unset.
func (s *Service) Learn(ctx context.Context, in LearnInput) (*store.Learning, error) {
	in.Trigger = strings.TrimSpace(in.Trigger)
	in.Learning = strings.TrimSpace(in.Learning)
	if in.Trigger == "" || in.Learning == "" {
		return nil, mnerr.New(mnerr.CodeMemoryLearningInputInvalid,
			"trigger and learning text are required")
	}
	if !scope.Valid(in.Scope) {
		return nil, mnerr.New(mnerr.CodeMemoryLearningInputInvalid,
			"invalid scope", mnerr.FieldScope(in.Scope))
	}

	vec, err := s.embed.Embed(ctx, EmbeddingText(in.Trigger, in.Learning))
	if err != nil {
		return nil, mnerr.Wrapf(err, mnerr.CodeEmbedderFailure,
			"embedding new learning")
	}

	confidence := DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}

	l := &store.Learning{
		ID:         ulid.Make().String(),
		Trigger:    in.Trigger,
		Learning:   in.Learning,
		Reason:     in.Reason,
		Source:     in.Source,
		Scope:      in.Scope,
		Confidence: confidence,
		Embedding:  vec,
		CreatedAt:  time.Now(),
	}

	err = s.retry.Do(ctx, "memory.learn", func(ctx context.Context) error {
		return s.learnings.Insert(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("learning created",
		slog.String("id", l.ID),
		slog.String("scope", l.Scope),
	)
	return l, nil
}

// Learnings lists non-deleted learnings, newest first.
func (s *Service) Learnings(ctx context.Context, q store.LearningQuery) ([]*store.Learning, error) {
	var out []*store.Learning
	err := s.retry.Do(ctx, "memory.list", func(ctx context.Context) error {
		var err error
		out, err = s.learnings.List(ctx, q)
		return err
	})
	return out, err
}

// Get returns a single non-deleted learning.
func (s *Service) Get(ctx context.Context, id string) (*store.Learning, error) {
	var out *store.Learning
	err := s.retry.Do(ctx, "memory.get", func(ctx context.Context) error {
		var err error
		out, err = s.learnings.Get(ctx, id)
		return err
	})
	return out, err
}

// Delete soft-deletes a learning. Deleting a missing or already-deleted
// id succeeds; the operation is idempotent.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.retry.Do(ctx, "memory.delete", func(ctx context.Context) error {
		return s.learnings.SoftDelete(ctx, id)
	})
}

// BulkDelete soft-deletes every learning matching the filter. An empty
// filter is a validation error, not a delete-everything request.
func (s *Service) BulkDelete(ctx context.Context, f store.DeleteFilter) (*DeleteResult, error) {
	if f.Empty() {
		return nil, mnerr.New(mnerr.CodeMemoryDeleteFilterInvalid,
			"bulk delete requires at least one filter")
	}

	var ids []string
	err := s.retry.Do(ctx, "memory.bulk_delete", func(ctx context.Context) error {
		var err error
		ids, err = s.learnings.SoftDeleteMatching(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("learnings bulk deleted", slog.Int("count", len(ids)))
	return &DeleteResult{Deleted: len(ids), IDs: ids}, nil
}

// Rescope moves a learning to a new scope. Missing or soft-deleted
// learnings fail with not-found.
func (s *Service) Rescope(ctx context.Context, id, newScope string) (*store.Learning, error) {
	if !scope.Valid(newScope) {
		return nil, mnerr.New(mnerr.CodeMemoryLearningInputInvalid,
			"invalid scope", mnerr.FieldScope(newScope))
	}

	var out *store.Learning
	err := s.retry.Do(ctx, "memory.rescope", func(ctx context.Context) error {
		var err error
		out, err = s.learnings.Rescope(ctx, id, newScope)
		return err
	})
	return out, err
}

// Stats returns store-wide counts excluding soft-deleted learnings.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	var out *store.Stats
	err := s.retry.Do(ctx, "memory.stats", func(ctx context.Context) error {
		var err error
		out, err = s.learnings.Stats(ctx)
		return err
	})
	return out, err
}

// PutSecret upserts a secret by (name, scope).
func (s *Service) PutSecret(ctx context.Context, name, secretScope, value string) (*store.Secret, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, mnerr.New(mnerr.CodeMemoryLearningInputInvalid, "secret name is required")
	}
	if !scope.Valid(secretScope) {
		return nil, mnerr.New(mnerr.CodeMemoryLearningInputInvalid,
			"invalid scope", mnerr.FieldScope(secretScope))
	}

	var out *store.Secret
	err := s.retry.Do(ctx, "memory.put_secret", func(ctx context.Context) error {
		var err error
		out, err = s.secrets.Put(ctx, name, secretScope, value)
		return err
	})
	return out, err
}

// GetSecret returns a secret by (name, scope), or a not-found error.
func (s *Service) GetSecret(ctx context.Context, name, secretScope string) (*store.Secret, error) {
	var out *store.Secret
	err := s.retry.Do(ctx, "memory.get_secret", func(ctx context.Context) error {
		var err error
		out, err = s.secrets.Get(ctx, name, secretScope)
		return err
	})
	return out, err
}
