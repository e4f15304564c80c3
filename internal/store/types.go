// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package store

import "time"

// --- Learning types ---

// Learning is a stored unit of agent memory: a trigger condition, the
// learned content, a confidence score, and a semantic embedding.
type Learning struct {
	ID             string
	Trigger        string
	Learning       string
	Reason         string
	Source         string
	Scope          string
	Confidence     float64
	Embedding      []float32
	CreatedAt      time.Time
	LastRecalledAt *time.Time
	RecallCount    int
	// DeletedAt marks a soft delete. Rows with DeletedAt set are retained
	// in storage but excluded from every read path.
	DeletedAt *time.Time
}

// Deleted reports whether the learning has been soft-deleted.
func (l *Learning) Deleted() bool {
	return l.DeletedAt != nil
}

// Secret is a named value scoped like a learning. Writing the same
// (name, scope) pair overwrites the value and bumps UpdatedAt.
type Secret struct {
	Name      string
	Scope     string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LearningQuery specifies filters for listing learnings.
type LearningQuery struct {
	Scope string // exact match; empty = all scopes
	Limit int    // <= 0 means no cap
}

// DeleteFilter selects learnings for bulk soft deletion. Filters
// AND-combine. The zero value matches nothing and is rejected by the
// memory service.
type DeleteFilter struct {
	// ConfidenceLT matches rows with confidence strictly below the value.
	ConfidenceLT *float64
	// NotRecalledInDays matches by recall staleness. 0 means "never
	// recalled" (last_recalled_at is null); N > 0 means
	// coalesce(last_recalled_at, created_at) is older than N days.
	NotRecalledInDays *int
	// Scope is an exact scope match.
	Scope string
	// ScopePrefix matches scopes by prefix. Used by the retention policy.
	ScopePrefix string
	// CreatedBefore matches rows created strictly before the instant.
	// Used by the retention policy's age tiers.
	CreatedBefore time.Time
}

// Empty reports whether no filter criterion is set.
func (f DeleteFilter) Empty() bool {
	return f.ConfidenceLT == nil &&
		f.NotRecalledInDays == nil &&
		f.Scope == "" &&
		f.ScopePrefix == "" &&
		f.CreatedBefore.IsZero()
}

// ScopeCount is a per-scope learning tally.
type ScopeCount struct {
	Scope string
	Count int
}

// Stats aggregates store-wide counts, excluding soft-deleted learnings.
type Stats struct {
	TotalLearnings int
	TotalSecrets   int
	Scopes         []ScopeCount
}

// Candidate is a single result from a vector similarity search.
// Distance is cosine distance in [0,2]; similarity is 1 - Distance.
type Candidate struct {
	Learning *Learning
	Distance float64
}

// --- Working state types ---

// StateStatus is the lifecycle state of a working-state record.
type StateStatus string

const (
	StateStatusActive   StateStatus = "active"
	StateStatusResolved StateStatus = "resolved"
)

// Decision is one decision entry in a working-state payload.
type Decision struct {
	Text   string `json:"text"`
	Status string `json:"status,omitempty"`
}

// StatePayload is the structured body of a working state. All fields are
// optional; the state service normalizes the payload before persisting.
type StatePayload struct {
	Goal          string     `json:"goal,omitempty"`
	Assumptions   []string   `json:"assumptions,omitempty"`
	Decisions     []Decision `json:"decisions,omitempty"`
	OpenQuestions []string   `json:"open_questions,omitempty"`
	NextActions   []string   `json:"next_actions,omitempty"`
	Confidence    *float64   `json:"confidence,omitempty"`
}

// WorkingState is mutable, revisioned structured notes about an
// in-progress agent run. Revision strictly increases by 1 on every
// committed mutation of a given run.
type WorkingState struct {
	RunID      string
	Revision   int
	Status     StateStatus
	State      StatePayload
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// StateRevision is an immutable snapshot appended for every working-state
// mutation. Rows are never updated or deleted.
type StateRevision struct {
	RunID         string
	Revision      int
	State         StatePayload
	ChangeSummary string
	UpdatedBy     string
	CreatedAt     time.Time
}

// StateEvent is an append-only audit log entry, independent of revisions.
type StateEvent struct {
	ID        string
	RunID     string
	EventType string
	Payload   map[string]any
	CreatedBy string
	CreatedAt time.Time
}
