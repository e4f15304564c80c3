// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

// Package retrieval ranks stored learnings against a query context by
// embedding similarity. All read paths fail open: a retrieval failure
// degrades to an empty result so memory never blocks the calling agent.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Chasewhip8/mnemonic-sub000/internal/memory"
	"github.com/Chasewhip8/mnemonic-sub000/internal/scope"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
)

const (
	// FormatPrompt renders injected learnings as newline-joined prompt text.
	FormatPrompt = "prompt"
	// FormatLearnings returns structured learnings without prompt text.
	FormatLearnings = "learnings"

	defaultInjectLimit    = 5
	defaultQueryLimit     = 10
	defaultNeighborLimit  = 10
	minTracePool          = 20
	defaultNeighborThresh = 0.85
)

// InjectResult is what inject hands back to the calling agent.
type InjectResult struct {
	Prompt    string
	Learnings []*store.Learning
}

// QueryResult carries ranked learnings plus a per-scope hit count.
type QueryResult struct {
	Learnings []*store.Learning
	Hits      map[string]int
}

// TraceCandidate is one scored candidate in a trace, whether or not it
// was injected.
type TraceCandidate struct {
	ID              string
	Trigger         string
	Learning        string
	Similarity      float64
	PassedThreshold bool
}

// TraceMetadata summarises threshold outcomes over the whole candidate
// pool, not just the injected subset.
type TraceMetadata struct {
	TotalCandidates int
	AboveThreshold  int
	BelowThreshold  int
}

// TraceResult is the diagnostic view of an inject run. It never bumps
// recall stats.
type TraceResult struct {
	InputContext       string
	EmbeddingGenerated []float32
	Candidates         []TraceCandidate
	ThresholdApplied   float64
	Injected           []*store.Learning
	DurationMs         int64
	Metadata           TraceMetadata
}

// Neighbor is a learning scored against a target learning's embedding.
type Neighbor struct {
	Learning   *store.Learning
	Similarity float64
}

// Embedder is the slice of the embedding capability retrieval needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine implements retrieval over the vector index. Inject is the only
// path that mutates recall stats.
type Engine struct {
	learnings store.LearningStore
	vectors   store.VectorIndex
	embed     Embedder
	retry     store.RetryPolicy
	logger    *slog.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(learnings store.LearningStore, vectors store.VectorIndex, embed Embedder, retry store.RetryPolicy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		learnings: learnings,
		vectors:   vectors,
		embed:     embed,
		retry:     retry,
		logger:    logger,
	}
}

// similarity converts cosine distance to similarity.
func similarity(distance float64) float64 {
	return 1 - distance
}

// Inject returns the learnings most relevant to context within the
// resolved scopes and bumps their recall stats. An empty scope resolution
// short-circuits without touching the embedder or the index. Failures
// degrade to an empty result.
func (e *Engine) Inject(ctx context.Context, scopes []string, contextText string, limit int, threshold float64, format string) *InjectResult {
	empty := &InjectResult{}
	if limit <= 0 {
		limit = defaultInjectLimit
	}

	resolved := scope.Resolve(scopes)
	if len(resolved) == 0 {
		return empty
	}

	matches, err := e.search(ctx, "retrieval.inject", contextText, resolved, limit, threshold)
	if err != nil {
		e.logger.Warn("inject failed open", slog.String("error", err.Error()))
		return empty
	}
	if len(matches) == 0 {
		return empty
	}

	learnings := make([]*store.Learning, len(matches))
	ids := make([]string, len(matches))
	for i, c := range matches {
		learnings[i] = c.Learning
		ids[i] = c.Learning.ID
	}

	// Recall tracking is best-effort: the learnings already fetched stay
	// valid even if the bump fails.
	now := time.Now()
	err = e.retry.Do(ctx, "retrieval.bump_recall", func(ctx context.Context) error {
		return e.learnings.BumpRecall(ctx, ids, now)
	})
	if err != nil {
		e.logger.Warn("recall bump failed", slog.String("error", err.Error()))
	} else {
		for _, l := range learnings {
			l.LastRecalledAt = &now
			l.RecallCount++
		}
	}

	result := &InjectResult{Learnings: learnings}
	if format != FormatLearnings {
		lines := make([]string, len(learnings))
		for i, l := range learnings {
			lines[i] = memory.EmbeddingText(l.Trigger, l.Learning)
		}
		result.Prompt = strings.Join(lines, "\n")
	}
	return result
}

// Query ranks like Inject but never mutates recall stats. Hits counts
// returned learnings per scope.
func (e *Engine) Query(ctx context.Context, scopes []string, text string, limit int) *QueryResult {
	empty := &QueryResult{Hits: map[string]int{}}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	resolved := scope.Resolve(scopes)
	if len(resolved) == 0 {
		return empty
	}

	matches, err := e.search(ctx, "retrieval.query", text, resolved, limit, 0)
	if err != nil {
		e.logger.Warn("query failed open", slog.String("error", err.Error()))
		return empty
	}

	result := &QueryResult{Hits: map[string]int{}}
	for _, c := range matches {
		result.Learnings = append(result.Learnings, c.Learning)
		result.Hits[c.Learning.Scope]++
	}
	return result
}

// InjectTrace runs the inject pipeline over a widened candidate pool and
// reports per-candidate scoring. It never bumps recall stats and returns
// a zeroed shape, never an error, when retrieval fails.
func (e *Engine) InjectTrace(ctx context.Context, scopes []string, contextText string, limit int, threshold float64) *TraceResult {
	start := time.Now()
	if limit <= 0 {
		limit = defaultInjectLimit
	}

	result := &TraceResult{
		InputContext:     contextText,
		ThresholdApplied: threshold,
	}
	finish := func() *TraceResult {
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	resolved := scope.Resolve(scopes)
	if len(resolved) == 0 {
		return finish()
	}

	vec, err := e.embed.Embed(ctx, contextText)
	if err != nil {
		e.logger.Warn("trace embedding failed", slog.String("error", err.Error()))
		return finish()
	}
	result.EmbeddingGenerated = vec

	pool := limit * 3
	if pool < minTracePool {
		pool = minTracePool
	}

	var candidates []store.Candidate
	err = e.retry.Do(ctx, "retrieval.trace", func(ctx context.Context) error {
		var err error
		candidates, err = e.vectors.Search(ctx, vec, resolved, pool)
		return err
	})
	if err != nil {
		e.logger.Warn("trace search failed", slog.String("error", err.Error()))
		return finish()
	}

	// Search returns ascending distance, so candidates arrive already
	// sorted by similarity descending.
	for _, c := range candidates {
		sim := similarity(c.Distance)
		passed := sim >= threshold
		result.Candidates = append(result.Candidates, TraceCandidate{
			ID:              c.Learning.ID,
			Trigger:         c.Learning.Trigger,
			Learning:        c.Learning.Learning,
			Similarity:      sim,
			PassedThreshold: passed,
		})
		result.Metadata.TotalCandidates++
		if passed {
			result.Metadata.AboveThreshold++
			if len(result.Injected) < limit {
				result.Injected = append(result.Injected, c.Learning)
			}
		} else {
			result.Metadata.BelowThreshold++
		}
	}

	return finish()
}

// Neighbors scores every other non-deleted learning against the target's
// stored embedding. A missing or soft-deleted target yields an empty
// result, not an error.
func (e *Engine) Neighbors(ctx context.Context, id string, threshold *float64, limit int) []Neighbor {
	thresh := defaultNeighborThresh
	if threshold != nil {
		thresh = *threshold
	}
	if limit <= 0 {
		limit = defaultNeighborLimit
	}

	var target *store.Learning
	err := e.retry.Do(ctx, "retrieval.neighbors.get", func(ctx context.Context) error {
		var err error
		target, err = e.learnings.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil
	}

	// Over-fetch by one so the target's own row does not consume a slot.
	var candidates []store.Candidate
	err = e.retry.Do(ctx, "retrieval.neighbors.search", func(ctx context.Context) error {
		var err error
		candidates, err = e.vectors.Search(ctx, target.Embedding, nil, limit+1)
		return err
	})
	if err != nil {
		e.logger.Warn("neighbor search failed open", slog.String("error", err.Error()))
		return nil
	}

	var neighbors []Neighbor
	for _, c := range candidates {
		if c.Learning.ID == id {
			continue
		}
		sim := similarity(c.Distance)
		if sim < thresh {
			continue
		}
		neighbors = append(neighbors, Neighbor{Learning: c.Learning, Similarity: sim})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors
}

// search embeds text and fetches the topK candidates whose similarity
// reaches threshold.
func (e *Engine) search(ctx context.Context, op, text string, resolved []string, limit int, threshold float64) ([]store.Candidate, error) {
	vec, err := e.embed.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	var candidates []store.Candidate
	err = e.retry.Do(ctx, op, func(ctx context.Context) error {
		var err error
		candidates, err = e.vectors.Search(ctx, vec, resolved, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Cosine distance spans [0,2], so similarity can be negative and even
	// a zero threshold excludes opposed vectors.
	filtered := candidates[:0]
	for _, c := range candidates {
		if similarity(c.Distance) >= threshold {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}
