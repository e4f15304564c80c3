// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package server

import (
	"time"

	"github.com/Chasewhip8/mnemonic-sub000/internal/retrieval"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
)

// LearningView is the outward learning shape. The embedding is omitted
// from responses.
type LearningView struct {
	ID             string     `json:"id"`
	Trigger        string     `json:"trigger"`
	Learning       string     `json:"learning"`
	Reason         string     `json:"reason,omitempty"`
	Source         string     `json:"source,omitempty"`
	Scope          string     `json:"scope"`
	Confidence     float64    `json:"confidence"`
	CreatedAt      time.Time  `json:"created_at"`
	LastRecalledAt *time.Time `json:"last_recalled_at,omitempty"`
	RecallCount    int        `json:"recall_count"`
}

func toLearningView(l *store.Learning) LearningView {
	return LearningView{
		ID:             l.ID,
		Trigger:        l.Trigger,
		Learning:       l.Learning,
		Reason:         l.Reason,
		Source:         l.Source,
		Scope:          l.Scope,
		Confidence:     l.Confidence,
		CreatedAt:      l.CreatedAt,
		LastRecalledAt: l.LastRecalledAt,
		RecallCount:    l.RecallCount,
	}
}

func toLearningViews(ls []*store.Learning) []LearningView {
	views := make([]LearningView, len(ls))
	for i, l := range ls {
		views[i] = toLearningView(l)
	}
	return views
}

// NeighborView is a learning scored against a neighbor-search target.
type NeighborView struct {
	LearningView
	SimilarityScore float64 `json:"similarity_score"`
}

// TraceCandidateView is one scored candidate in an inject trace.
type TraceCandidateView struct {
	ID              string  `json:"id"`
	Trigger         string  `json:"trigger"`
	Learning        string  `json:"learning"`
	SimilarityScore float64 `json:"similarity_score"`
	PassedThreshold bool    `json:"passed_threshold"`
}

// TraceMetadataView summarises threshold outcomes over the candidate pool.
type TraceMetadataView struct {
	TotalCandidates int `json:"total_candidates"`
	AboveThreshold  int `json:"above_threshold"`
	BelowThreshold  int `json:"below_threshold"`
}

// TraceView is the outward inject-trace shape.
type TraceView struct {
	InputContext       string               `json:"input_context"`
	EmbeddingGenerated []float32            `json:"embedding_generated"`
	Candidates         []TraceCandidateView `json:"candidates"`
	ThresholdApplied   float64              `json:"threshold_applied"`
	Injected           []LearningView       `json:"injected"`
	DurationMs         int64                `json:"duration_ms"`
	Metadata           TraceMetadataView    `json:"metadata"`
}

func toTraceView(t *retrieval.TraceResult) TraceView {
	candidates := make([]TraceCandidateView, len(t.Candidates))
	for i, c := range t.Candidates {
		candidates[i] = TraceCandidateView{
			ID:              c.ID,
			Trigger:         c.Trigger,
			Learning:        c.Learning,
			SimilarityScore: c.Similarity,
			PassedThreshold: c.PassedThreshold,
		}
	}

	return TraceView{
		InputContext:       t.InputContext,
		EmbeddingGenerated: t.EmbeddingGenerated,
		Candidates:         candidates,
		ThresholdApplied:   t.ThresholdApplied,
		Injected:           toLearningViews(t.Injected),
		DurationMs:         t.DurationMs,
		Metadata: TraceMetadataView{
			TotalCandidates: t.Metadata.TotalCandidates,
			AboveThreshold:  t.Metadata.AboveThreshold,
			BelowThreshold:  t.Metadata.BelowThreshold,
		},
	}
}

// ScopeCountView is a per-scope learning tally.
type ScopeCountView struct {
	Scope string `json:"scope"`
	Count int    `json:"count"`
}

// StatsView is the outward stats shape.
type StatsView struct {
	TotalLearnings int              `json:"total_learnings"`
	TotalSecrets   int              `json:"total_secrets"`
	Scopes         []ScopeCountView `json:"scopes"`
}

func toStatsView(s *store.Stats) StatsView {
	scopes := make([]ScopeCountView, len(s.Scopes))
	for i, sc := range s.Scopes {
		scopes[i] = ScopeCountView{Scope: sc.Scope, Count: sc.Count}
	}
	return StatsView{
		TotalLearnings: s.TotalLearnings,
		TotalSecrets:   s.TotalSecrets,
		Scopes:         scopes,
	}
}

// SecretView is the outward secret shape.
type SecretView struct {
	Name      string    `json:"name"`
	Scope     string    `json:"scope"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSecretView(s *store.Secret) SecretView {
	return SecretView{
		Name:      s.Name,
		Scope:     s.Scope,
		Value:     s.Value,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// DecisionView is one decision entry in a working-state payload.
type DecisionView struct {
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

// StatePayloadView is the outward working-state payload shape.
type StatePayloadView struct {
	Goal          string         `json:"goal,omitempty"`
	Assumptions   []string       `json:"assumptions,omitempty"`
	Decisions     []DecisionView `json:"decisions,omitempty"`
	OpenQuestions []string       `json:"open_questions,omitempty"`
	NextActions   []string       `json:"next_actions,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty"`
}

func toStatePayloadView(p store.StatePayload) StatePayloadView {
	decisions := make([]DecisionView, len(p.Decisions))
	for i, d := range p.Decisions {
		decisions[i] = DecisionView{Text: d.Text, Status: d.Status}
	}
	return StatePayloadView{
		Goal:          p.Goal,
		Assumptions:   p.Assumptions,
		Decisions:     decisions,
		OpenQuestions: p.OpenQuestions,
		NextActions:   p.NextActions,
		Confidence:    p.Confidence,
	}
}

func fromStatePayloadView(p StatePayloadView) store.StatePayload {
	decisions := make([]store.Decision, len(p.Decisions))
	for i, d := range p.Decisions {
		decisions[i] = store.Decision{Text: d.Text, Status: d.Status}
	}
	return store.StatePayload{
		Goal:          p.Goal,
		Assumptions:   p.Assumptions,
		Decisions:     decisions,
		OpenQuestions: p.OpenQuestions,
		NextActions:   p.NextActions,
		Confidence:    p.Confidence,
	}
}

// WorkingStateView is the outward working-state shape.
type WorkingStateView struct {
	RunID      string           `json:"run_id"`
	Revision   int              `json:"revision"`
	Status     string           `json:"status"`
	State      StatePayloadView `json:"state"`
	UpdatedBy  string           `json:"updated_by,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

func toWorkingStateView(ws *store.WorkingState) WorkingStateView {
	return WorkingStateView{
		RunID:      ws.RunID,
		Revision:   ws.Revision,
		Status:     string(ws.Status),
		State:      toStatePayloadView(ws.State),
		UpdatedBy:  ws.UpdatedBy,
		CreatedAt:  ws.CreatedAt,
		UpdatedAt:  ws.UpdatedAt,
		ResolvedAt: ws.ResolvedAt,
	}
}

// StateRevisionView is one immutable revision snapshot.
type StateRevisionView struct {
	RunID         string           `json:"run_id"`
	Revision      int              `json:"revision"`
	State         StatePayloadView `json:"state"`
	ChangeSummary string           `json:"change_summary,omitempty"`
	UpdatedBy     string           `json:"updated_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// StateEventView is one audit event.
type StateEventView struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
