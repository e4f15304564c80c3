// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

// Package retention soft-deletes stale and low-confidence learnings on a
// schedule. The tiers are unconditional: session learnings expire by age,
// agent learnings expire by a longer age, and low-confidence learnings
// expire regardless of scope or age.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Chasewhip8/mnemonic-sub000/internal/scope"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
)

// Config holds the tier thresholds and the sweep schedule.
type Config struct {
	// Interval between scheduled sweeps.
	Interval time.Duration
	// SessionMaxAge expires session-scoped learnings older than this.
	SessionMaxAge time.Duration
	// AgentMaxAge expires agent-scoped learnings older than this.
	AgentMaxAge time.Duration
	// MinConfidence expires learnings with confidence strictly below it,
	// in any scope and at any age.
	MinConfidence float64
}

// DefaultConfig returns the standard retention tiers: daily sweeps,
// 7-day session retention, 30-day agent retention, 0.3 confidence floor.
func DefaultConfig() Config {
	return Config{
		Interval:      24 * time.Hour,
		SessionMaxAge: 7 * 24 * time.Hour,
		AgentMaxAge:   30 * 24 * time.Hour,
		MinConfidence: 0.3,
	}
}

// Result reports one sweep: how many rows were soft-deleted and a
// human-readable reason line per tier that deleted anything.
type Result struct {
	Deleted int
	Reasons []string
}

// Policy applies the retention tiers. Tiers run sequentially in one
// sweep; a row matching several tiers is deleted by the first one that
// reaches it.
type Policy struct {
	learnings store.LearningStore
	retry     store.RetryPolicy
	cfg       Config
	logger    *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPolicy creates a retention policy.
func NewPolicy(learnings store.LearningStore, retry store.RetryPolicy, cfg Config, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Policy{
		learnings: learnings,
		retry:     retry,
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// tier is one retention rule: a filter plus its reason template.
type tier struct {
	name   string
	filter store.DeleteFilter
	reason string
}

func (p *Policy) tiers(now time.Time) []tier {
	minConf := p.cfg.MinConfidence
	return []tier{
		{
			name: "session_age",
			filter: store.DeleteFilter{
				ScopePrefix:   scope.SessionPrefix,
				CreatedBefore: now.Add(-p.cfg.SessionMaxAge),
			},
			reason: fmt.Sprintf("session learnings older than %s", p.cfg.SessionMaxAge),
		},
		{
			name: "agent_age",
			filter: store.DeleteFilter{
				ScopePrefix:   scope.AgentPrefix,
				CreatedBefore: now.Add(-p.cfg.AgentMaxAge),
			},
			reason: fmt.Sprintf("agent learnings older than %s", p.cfg.AgentMaxAge),
		},
		{
			name:   "low_confidence",
			filter: store.DeleteFilter{ConfidenceLT: &minConf},
			reason: fmt.Sprintf("confidence below %.2f", minConf),
		},
	}
}

// Run executes one sweep immediately, independent of the schedule.
func (p *Policy) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, t := range p.tiers(time.Now()) {
		var ids []string
		err := p.retry.Do(ctx, "retention."+t.name, func(ctx context.Context) error {
			var err error
			ids, err = p.learnings.SoftDeleteMatching(ctx, t.filter)
			return err
		})
		if err != nil {
			return result, err
		}
		if len(ids) == 0 {
			continue
		}

		result.Deleted += len(ids)
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%s: deleted %d", t.reason, len(ids)))
		p.logger.Info("retention tier applied",
			slog.String("tier", t.name),
			slog.Int("deleted", len(ids)),
		)
	}

	return result, nil
}

// Start sweeps once immediately and then on every interval tick until
// Stop is called. Sweep failures are logged; the schedule keeps running.
func (p *Policy) Start(ctx context.Context) {
	if _, err := p.Run(ctx); err != nil {
		p.logger.Error("retention sweep failed", slog.String("error", err.Error()))
	}

	go func() {
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := p.Run(ctx); err != nil {
					p.logger.Error("retention sweep failed", slog.String("error", err.Error()))
				}
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts down the sweep schedule. Safe to call more than once.
func (p *Policy) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}
