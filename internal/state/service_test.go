// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package state_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chasewhip8/mnemonic-sub000/internal/memory"
	"github.com/Chasewhip8/mnemonic-sub000/internal/state"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store/sqlite"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// recordingLearner captures resolve-time learnings without a real memory
// service.
type recordingLearner struct {
	inputs []memory.LearnInput
	err    error
}

func (r *recordingLearner) Learn(_ context.Context, in memory.LearnInput) (*store.Learning, error) {
	r.inputs = append(r.inputs, in)
	if r.err != nil {
		return nil, r.err
	}
	return &store.Learning{ID: "learned"}, nil
}

func newService(t *testing.T, learner state.Learner) *state.Service {
	t.Helper()

	ss, err := sqlite.NewStateStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	return state.NewService(ss, learner, store.DefaultRetryPolicy(), nil)
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestGetUnknownRunReturnsNil(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	ws, err := svc.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, ws)
}

func TestUpsertNormalizesPayload(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	ws, err := svc.Upsert(ctx, "run-1", store.StatePayload{
		Goal:        "  ship the release  ",
		Assumptions: []string{" ci is green ", "", "   "},
		Decisions: []store.Decision{
			{Text: "  freeze main  ", Status: " accepted "},
			{Text: "   "},
		},
		NextActions: []string{"tag v1.2.0", ""},
	}, "agent-a")
	require.NoError(t, err)

	assert.Equal(t, 1, ws.Revision)
	assert.Equal(t, "ship the release", ws.State.Goal)
	assert.Equal(t, []string{"ci is green"}, ws.State.Assumptions)
	require.Len(t, ws.State.Decisions, 1)
	assert.Equal(t, "freeze main", ws.State.Decisions[0].Text)
	assert.Equal(t, "accepted", ws.State.Decisions[0].Status)
	assert.Equal(t, []string{"tag v1.2.0"}, ws.State.NextActions)
}

func TestUpsertRequiresRunID(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	_, err := svc.Upsert(ctx, "", store.StatePayload{Goal: "x"}, "")
	require.Error(t, err)
	assert.True(t, mnerr.IsInvalidInput(err))
}

func TestUpsertRevisionSequence(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	for i, goal := range []string{"v1", "v2", "v3"} {
		ws, err := svc.Upsert(ctx, "run-1", store.StatePayload{Goal: goal}, "agent-a")
		require.NoError(t, err)
		assert.Equal(t, i+1, ws.Revision)
	}

	revs, err := svc.Revisions(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, revs, 3)
	assert.Equal(t, "v3", revs[0].State.Goal)
	assert.Equal(t, "state upsert", revs[0].ChangeSummary)
}

func TestPatchReplacesOnlyProvidedFields(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	_, err := svc.Upsert(ctx, "run-1", store.StatePayload{
		Goal:        "ship it",
		Assumptions: []string{"ci is green"},
		NextActions: []string{"tag release"},
	}, "agent-a")
	require.NoError(t, err)

	ws, err := svc.PatchState(ctx, "run-1", state.Patch{
		NextActions: &[]string{"write changelog"},
		Confidence:  floatPtr(0.6),
	}, "agent-b")
	require.NoError(t, err)

	assert.Equal(t, 2, ws.Revision)
	assert.Equal(t, "ship it", ws.State.Goal)
	assert.Equal(t, []string{"ci is green"}, ws.State.Assumptions)
	assert.Equal(t, []string{"write changelog"}, ws.State.NextActions)
	require.NotNil(t, ws.State.Confidence)
	assert.Equal(t, 0.6, *ws.State.Confidence)

	revs, err := svc.Revisions(ctx, "run-1", 1)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "state patch", revs[0].ChangeSummary)
}

func TestPatchUnknownRunStartsAtRevisionOne(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	ws, err := svc.PatchState(ctx, "fresh", state.Patch{Goal: strPtr("start")}, "agent-a")
	require.NoError(t, err)
	assert.Equal(t, 1, ws.Revision)
	assert.Equal(t, "start", ws.State.Goal)
}

func TestAddEventGeneratesID(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	id, err := svc.AddEvent(ctx, "run-1", "tool_call", map[string]any{"tool": "search"}, "agent-a")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	events, err := svc.Events(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)

	_, err = svc.AddEvent(ctx, "run-1", "  ", nil, "")
	require.Error(t, err)
	assert.True(t, mnerr.IsInvalidInput(err))
}

func TestResolveUnknownRunReturnsNil(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	ws, err := svc.Resolve(ctx, "nope", state.ResolveOptions{})
	require.NoError(t, err)
	assert.Nil(t, ws)
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	_, err := svc.Upsert(ctx, "run-1", store.StatePayload{Goal: "done"}, "agent-a")
	require.NoError(t, err)

	first, err := svc.Resolve(ctx, "run-1", state.ResolveOptions{UpdatedBy: "agent-a"})
	require.NoError(t, err)
	assert.Equal(t, store.StateStatusResolved, first.Status)
	assert.Equal(t, 1, first.Revision)

	second, err := svc.Resolve(ctx, "run-1", state.ResolveOptions{UpdatedBy: "agent-b"})
	require.NoError(t, err)
	assert.Equal(t, store.StateStatusResolved, second.Status)
	assert.Equal(t, 1, second.Revision)
	require.NotNil(t, second.ResolvedAt)
	assert.Equal(t, first.ResolvedAt.UnixMilli(), second.ResolvedAt.UnixMilli())
}

func TestResolvePersistsSummaryLearning(t *testing.T) {
	ctx := context.Background()
	learner := &recordingLearner{}
	svc := newService(t, learner)

	_, err := svc.Upsert(ctx, "run-1", store.StatePayload{
		Goal:        "ship the release",
		Decisions:   []store.Decision{{Text: "freeze main"}},
		NextActions: []string{"tag v1.2.0"},
		Confidence:  floatPtr(0.95),
	}, "agent-a")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "run-1", state.ResolveOptions{PersistToLearn: true})
	require.NoError(t, err)

	require.Len(t, learner.inputs, 1)
	in := learner.inputs[0]
	assert.Equal(t, "shared", in.Scope)
	assert.Contains(t, in.Learning, "goal: ship the release")
	assert.Contains(t, in.Learning, "decided: freeze main")
	assert.Contains(t, in.Learning, "next: tag v1.2.0")
	require.NotNil(t, in.Confidence)
	assert.Equal(t, 0.95, *in.Confidence)
}

func TestResolveSummaryStyle(t *testing.T) {
	ctx := context.Background()
	learner := &recordingLearner{}
	svc := newService(t, learner)

	_, err := svc.Upsert(ctx, "run-1", store.StatePayload{Goal: "ship the release"}, "agent-a")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "run-1", state.ResolveOptions{
		PersistToLearn: true,
		SummaryStyle:   state.SummaryStyleCompact,
	})
	require.NoError(t, err)
	require.Len(t, learner.inputs, 1)
	assert.Contains(t, learner.inputs[0].Learning, "goal: ship the release")

	// An unknown style falls back to compact rather than failing the
	// resolve.
	_, err = svc.Resolve(ctx, "run-1", state.ResolveOptions{
		PersistToLearn: true,
		SummaryStyle:   "haiku",
	})
	require.NoError(t, err)
	require.Len(t, learner.inputs, 2)
	assert.Contains(t, learner.inputs[1].Learning, "goal: ship the release")
}

func TestResolveSurvivesLearnerFailure(t *testing.T) {
	ctx := context.Background()
	learner := &recordingLearner{err: errors.New("embedder down")}
	svc := newService(t, learner)

	_, err := svc.Upsert(ctx, "run-1", store.StatePayload{Goal: "done"}, "agent-a")
	require.NoError(t, err)

	ws, err := svc.Resolve(ctx, "run-1", state.ResolveOptions{PersistToLearn: true, Scope: "agent:planner"})
	require.NoError(t, err)
	assert.Equal(t, store.StateStatusResolved, ws.Status)
	require.Len(t, learner.inputs, 1)
	assert.Equal(t, "agent:planner", learner.inputs[0].Scope)
}

func TestSummarizeEmptyPayload(t *testing.T) {
	assert.Empty(t, state.Summarize(store.StatePayload{}))
}
