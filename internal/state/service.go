// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

// Package state manages revisioned working state for in-flight agent
// runs: structured notes that mutate through upsert/patch, an immutable
// revision history, and an append-only event log.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Chasewhip8/mnemonic-sub000/internal/memory"
	"github.com/Chasewhip8/mnemonic-sub000/internal/scope"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// resolveConfidence is used for resolve-time learnings when the state
// declares no confidence of its own.
const resolveConfidence = 0.8

// upsertConflictRetries bounds how often a read-modify-write cycle is
// repeated when a concurrent writer commits first.
const upsertConflictRetries = 3

// Learner is the slice of the memory service resolve-time persistence
// needs.
type Learner interface {
	Learn(ctx context.Context, in memory.LearnInput) (*store.Learning, error)
}

// Patch holds partial working-state fields. A set field fully replaces
// the current value; arrays are swapped whole, never merged element-wise.
type Patch struct {
	Goal          *string
	Assumptions   *[]string
	Decisions     *[]store.Decision
	OpenQuestions *[]string
	NextActions   *[]string
	Confidence    *float64
}

// SummaryStyleCompact renders the resolve-time summary as a single
// pipe-joined line. It is the only style and the default.
const SummaryStyleCompact = "compact"

// ResolveOptions controls resolveState behavior.
type ResolveOptions struct {
	// PersistToLearn writes a summary learning when the run resolves.
	PersistToLearn bool
	// Scope for the summary learning. Defaults to shared.
	Scope string
	// SummaryStyle selects how the summary learning is rendered. An
	// unknown style falls back to SummaryStyleCompact.
	SummaryStyle string
	UpdatedBy    string
}

// Service implements working-state operations over the state store.
type Service struct {
	states  store.StateStore
	learner Learner
	retry   store.RetryPolicy
	logger  *slog.Logger
}

// NewService creates a state service. learner may be nil when resolve-
// time persistence is not wired.
func NewService(states store.StateStore, learner Learner, retry store.RetryPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		states:  states,
		learner: learner,
		retry:   retry,
		logger:  logger,
	}
}

// Get returns the working state for a run, or nil when the run is
// unknown.
func (s *Service) Get(ctx context.Context, runID string) (*store.WorkingState, error) {
	var ws *store.WorkingState
	err := s.retry.Do(ctx, "state.get", func(ctx context.Context) error {
		var err error
		ws, err = s.states.Get(ctx, runID)
		return err
	})
	if mnerr.IsNotFound(err) {
		return nil, nil
	}
	return ws, err
}

// Upsert normalizes and persists a full payload, bumping the revision by
// exactly one. Concurrent writers race on the revision; the loser's
// cycle is retried against the fresh revision a bounded number of times.
func (s *Service) Upsert(ctx context.Context, runID string, payload store.StatePayload, updatedBy string) (*store.WorkingState, error) {
	return s.upsert(ctx, runID, payload, updatedBy, "state upsert")
}

func (s *Service) upsert(ctx context.Context, runID string, payload store.StatePayload, updatedBy, changeSummary string) (*store.WorkingState, error) {
	if runID == "" {
		return nil, mnerr.New(mnerr.CodeStatePayloadInvalid, "run id is required")
	}
	normalized := normalize(payload)

	var lastErr error
	for attempt := 0; attempt <= upsertConflictRetries; attempt++ {
		current, err := s.Get(ctx, runID)
		if err != nil {
			return nil, err
		}
		expected := 0
		if current != nil {
			expected = current.Revision
		}

		var ws *store.WorkingState
		err = s.retry.Do(ctx, "state.upsert", func(ctx context.Context) error {
			var err error
			ws, err = s.states.Upsert(ctx, runID, normalized, updatedBy, changeSummary, expected)
			return err
		})
		if err == nil {
			return ws, nil
		}
		if !mnerr.IsConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// PatchState merges the patch over the current payload and persists the
// result as a new revision. Patching an unknown run starts it at
// revision 1 from an empty payload.
func (s *Service) PatchState(ctx context.Context, runID string, patch Patch, updatedBy string) (*store.WorkingState, error) {
	current, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	var payload store.StatePayload
	if current != nil {
		payload = current.State
	}
	if patch.Goal != nil {
		payload.Goal = *patch.Goal
	}
	if patch.Assumptions != nil {
		payload.Assumptions = *patch.Assumptions
	}
	if patch.Decisions != nil {
		payload.Decisions = *patch.Decisions
	}
	if patch.OpenQuestions != nil {
		payload.OpenQuestions = *patch.OpenQuestions
	}
	if patch.NextActions != nil {
		payload.NextActions = *patch.NextActions
	}
	if patch.Confidence != nil {
		payload.Confidence = patch.Confidence
	}

	return s.upsert(ctx, runID, payload, updatedBy, "state patch")
}

// AddEvent appends an audit event and returns its generated id. Events
// do not require an existing working-state row.
func (s *Service) AddEvent(ctx context.Context, runID, eventType string, payload map[string]any, createdBy string) (string, error) {
	if runID == "" || strings.TrimSpace(eventType) == "" {
		return "", mnerr.New(mnerr.CodeStatePayloadInvalid, "run id and event type are required")
	}

	ev := &store.StateEvent{
		ID:        uuid.New().String(),
		RunID:     runID,
		EventType: strings.TrimSpace(eventType),
		Payload:   payload,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	err := s.retry.Do(ctx, "state.add_event", func(ctx context.Context) error {
		return s.states.AppendEvent(ctx, ev)
	})
	if err != nil {
		return "", err
	}
	return ev.ID, nil
}

// Resolve marks a run resolved without bumping its revision; resolving
// again is a no-op that keeps the original resolution time. Returns nil
// for an unknown run. With PersistToLearn, a summary learning is written
// best-effort: its failure is logged, never propagated.
func (s *Service) Resolve(ctx context.Context, runID string, opts ResolveOptions) (*store.WorkingState, error) {
	var ws *store.WorkingState
	err := s.retry.Do(ctx, "state.resolve", func(ctx context.Context) error {
		var err error
		ws, err = s.states.Resolve(ctx, runID, time.Now(), opts.UpdatedBy)
		return err
	})
	if mnerr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if opts.PersistToLearn && s.learner != nil {
		s.persistSummary(ctx, ws, opts)
	}
	return ws, nil
}

func (s *Service) persistSummary(ctx context.Context, ws *store.WorkingState, opts ResolveOptions) {
	if opts.SummaryStyle != "" && opts.SummaryStyle != SummaryStyleCompact {
		s.logger.Warn("unknown summary style, using compact",
			slog.String("run_id", ws.RunID),
			slog.String("style", opts.SummaryStyle),
		)
	}
	summary := Summarize(ws.State)
	if summary == "" {
		return
	}

	learnScope := opts.Scope
	if learnScope == "" {
		learnScope = scope.Shared
	}
	confidence := resolveConfidence
	if ws.State.Confidence != nil {
		confidence = *ws.State.Confidence
	}

	_, err := s.learner.Learn(ctx, memory.LearnInput{
		Scope:      learnScope,
		Trigger:    fmt.Sprintf("resuming run %s", ws.RunID),
		Learning:   summary,
		Confidence: &confidence,
		Source:     "state_resolve",
	})
	if err != nil {
		s.logger.Warn("resolve-time learning failed",
			slog.String("run_id", ws.RunID),
			slog.String("error", err.Error()),
		)
	}
}

// Revisions lists the immutable revision history, newest first.
func (s *Service) Revisions(ctx context.Context, runID string, limit int) ([]*store.StateRevision, error) {
	var out []*store.StateRevision
	err := s.retry.Do(ctx, "state.revisions", func(ctx context.Context) error {
		var err error
		out, err = s.states.Revisions(ctx, runID, limit)
		return err
	})
	return out, err
}

// Events lists audit events, newest first.
func (s *Service) Events(ctx context.Context, runID string, limit int) ([]*store.StateEvent, error) {
	var out []*store.StateEvent
	err := s.retry.Do(ctx, "state.events", func(ctx context.Context) error {
		var err error
		out, err = s.states.Events(ctx, runID, limit)
		return err
	})
	return out, err
}

// Summarize renders a compact one-line summary of a payload from its
// goal, accepted decisions, and next actions.
func Summarize(p store.StatePayload) string {
	var parts []string
	if p.Goal != "" {
		parts = append(parts, "goal: "+p.Goal)
	}
	if len(p.Decisions) > 0 {
		texts := make([]string, 0, len(p.Decisions))
		for _, d := range p.Decisions {
			texts = append(texts, d.Text)
		}
		parts = append(parts, "decided: "+strings.Join(texts, "; "))
	}
	if len(p.NextActions) > 0 {
		parts = append(parts, "next: "+strings.Join(p.NextActions, "; "))
	}
	return strings.Join(parts, " | ")
}

// normalize trims strings, drops empty array entries, and keeps only
// decisions with non-empty text.
func normalize(p store.StatePayload) store.StatePayload {
	out := store.StatePayload{
		Goal:          strings.TrimSpace(p.Goal),
		Assumptions:   cleanStrings(p.Assumptions),
		OpenQuestions: cleanStrings(p.OpenQuestions),
		NextActions:   cleanStrings(p.NextActions),
		Confidence:    p.Confidence,
	}

	for _, d := range p.Decisions {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		out.Decisions = append(out.Decisions, store.Decision{
			Text:   text,
			Status: strings.TrimSpace(d.Status),
		})
	}
	return out
}

func cleanStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
