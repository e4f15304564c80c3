// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Chasewhip8/mnemonic-sub000/internal/memory"
	"github.com/Chasewhip8/mnemonic-sub000/internal/state"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Learning endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "create-learning",
		Method:      http.MethodPost,
		Path:        "/api/v1/learnings",
		Summary:     "Create a learning",
		Tags:        []string{"learnings"},
	}, s.handleLearn)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-learnings",
		Method:      http.MethodGet,
		Path:        "/api/v1/learnings",
		Summary:     "List learnings",
		Tags:        []string{"learnings"},
	}, s.handleListLearnings)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-learning",
		Method:      http.MethodDelete,
		Path:        "/api/v1/learnings/{id}",
		Summary:     "Soft-delete a learning",
		Tags:        []string{"learnings"},
	}, s.handleDeleteLearning)

	huma.Register(s.api, huma.Operation{
		OperationID: "bulk-delete-learnings",
		Method:      http.MethodPost,
		Path:        "/api/v1/learnings/bulk-delete",
		Summary:     "Soft-delete learnings by filter",
		Tags:        []string{"learnings"},
	}, s.handleBulkDelete)

	huma.Register(s.api, huma.Operation{
		OperationID: "rescope-learning",
		Method:      http.MethodPost,
		Path:        "/api/v1/learnings/{id}/rescope",
		Summary:     "Move a learning to a new scope",
		Tags:        []string{"learnings"},
	}, s.handleRescope)

	huma.Register(s.api, huma.Operation{
		OperationID: "learning-neighbors",
		Method:      http.MethodGet,
		Path:        "/api/v1/learnings/{id}/neighbors",
		Summary:     "Find learnings similar to a learning",
		Tags:        []string{"learnings"},
	}, s.handleNeighbors)

	// Retrieval endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "inject",
		Method:      http.MethodPost,
		Path:        "/api/v1/inject",
		Summary:     "Inject relevant learnings for a context",
		Tags:        []string{"retrieval"},
	}, s.handleInject)

	huma.Register(s.api, huma.Operation{
		OperationID: "query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query",
		Summary:     "Query learnings without recall tracking",
		Tags:        []string{"retrieval"},
	}, s.handleQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "inject-trace",
		Method:      http.MethodPost,
		Path:        "/api/v1/inject/trace",
		Summary:     "Diagnostic inject with per-candidate scoring",
		Tags:        []string{"retrieval"},
	}, s.handleInjectTrace)

	// Stats and retention
	huma.Register(s.api, huma.Operation{
		OperationID: "memory-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Memory store statistics",
		Tags:        []string{"system"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "run-retention",
		Method:      http.MethodPost,
		Path:        "/api/v1/retention/run",
		Summary:     "Run a retention sweep now",
		Tags:        []string{"system"},
	}, s.handleRunRetention)

	// Secret endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "put-secret",
		Method:      http.MethodPut,
		Path:        "/api/v1/secrets/{name}",
		Summary:     "Create or update a scoped secret",
		Tags:        []string{"secrets"},
	}, s.handlePutSecret)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-secret",
		Method:      http.MethodGet,
		Path:        "/api/v1/secrets/{name}",
		Summary:     "Get a scoped secret",
		Tags:        []string{"secrets"},
	}, s.handleGetSecret)

	// Working-state endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/v1/state/{runId}",
		Summary:     "Get working state for a run",
		Tags:        []string{"state"},
	}, s.handleGetState)

	huma.Register(s.api, huma.Operation{
		OperationID: "upsert-state",
		Method:      http.MethodPut,
		Path:        "/api/v1/state/{runId}",
		Summary:     "Replace working state for a run",
		Tags:        []string{"state"},
	}, s.handleUpsertState)

	huma.Register(s.api, huma.Operation{
		OperationID: "patch-state",
		Method:      http.MethodPatch,
		Path:        "/api/v1/state/{runId}",
		Summary:     "Patch working state for a run",
		Tags:        []string{"state"},
	}, s.handlePatchState)

	huma.Register(s.api, huma.Operation{
		OperationID: "resolve-state",
		Method:      http.MethodPost,
		Path:        "/api/v1/state/{runId}/resolve",
		Summary:     "Mark a run resolved",
		Tags:        []string{"state"},
	}, s.handleResolveState)

	huma.Register(s.api, huma.Operation{
		OperationID: "add-state-event",
		Method:      http.MethodPost,
		Path:        "/api/v1/state/{runId}/events",
		Summary:     "Append a state event",
		Tags:        []string{"state"},
	}, s.handleAddEvent)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-state-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/state/{runId}/events",
		Summary:     "List state events",
		Tags:        []string{"state"},
	}, s.handleListEvents)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-state-revisions",
		Method:      http.MethodGet,
		Path:        "/api/v1/state/{runId}/revisions",
		Summary:     "List state revisions",
		Tags:        []string{"state"},
	}, s.handleListRevisions)
}

// mapError translates service errors into huma status errors.
func mapError(err error, msg string) error {
	switch {
	case mnerr.IsNotFound(err):
		return huma.Error404NotFound(msg)
	case mnerr.IsInvalidInput(err):
		return huma.Error400BadRequest(err.Error())
	case mnerr.IsConflict(err):
		return huma.Error409Conflict(msg, err)
	case mnerr.IsUnavailable(err):
		return huma.Error503ServiceUnavailable(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

// --- Request/Response types for huma ---

type createLearningInput struct {
	Body struct {
		Scope      string   `json:"scope" minLength:"1" doc:"Target scope (session:<id>, agent:<id>, or shared)"`
		Trigger    string   `json:"trigger" minLength:"1" doc:"Trigger condition"`
		Learning   string   `json:"learning" minLength:"1" doc:"Learned content"`
		Confidence *float64 `json:"confidence,omitempty" doc:"Confidence in [0,1], defaults to 0.5"`
		Reason     string   `json:"reason,omitempty"`
		Source     string   `json:"source,omitempty"`
	}
}
type createLearningOutput struct {
	Body LearningView
}

type listLearningsInput struct {
	Scope string `query:"scope" doc:"Exact scope filter"`
	Limit int    `query:"limit" doc:"Optional row cap, omit for all rows"`
}
type listLearningsOutput struct {
	Body struct {
		Learnings []LearningView `json:"learnings"`
	}
}

type learningIDInput struct {
	ID string `path:"id"`
}
type deleteLearningOutput struct {
	Body struct {
		Success bool `json:"success"`
	}
}

type bulkDeleteInput struct {
	Body struct {
		ConfidenceLT      *float64 `json:"confidence_lt,omitempty"`
		NotRecalledInDays *int     `json:"not_recalled_in_days,omitempty" doc:"0 means never recalled"`
		Scope             string   `json:"scope,omitempty"`
	}
}
type bulkDeleteOutput struct {
	Body struct {
		Deleted int      `json:"deleted"`
		IDs     []string `json:"ids"`
	}
}

type rescopeInput struct {
	ID   string `path:"id"`
	Body struct {
		Scope string `json:"scope" minLength:"1" doc:"New scope"`
	}
}

type neighborsInput struct {
	ID        string   `path:"id"`
	Threshold *float64 `query:"threshold" doc:"Similarity floor, defaults to 0.85"`
	Limit     int      `query:"limit" doc:"Defaults to 10"`
}
type neighborsOutput struct {
	Body struct {
		Neighbors []NeighborView `json:"neighbors"`
	}
}

type injectInput struct {
	Body struct {
		Scopes    []string `json:"scopes" doc:"Candidate scopes, resolved by priority"`
		Context   string   `json:"context" minLength:"1" doc:"Context to match against"`
		Limit     int      `json:"limit,omitempty" doc:"Defaults to 5"`
		Threshold float64  `json:"threshold,omitempty" doc:"Similarity floor, defaults to 0"`
		Format    string   `json:"format,omitempty" enum:"prompt,learnings" doc:"Defaults to prompt"`
	}
}
type injectOutput struct {
	Body struct {
		Prompt    string         `json:"prompt"`
		Learnings []LearningView `json:"learnings"`
	}
}

type queryInput struct {
	Body struct {
		Scopes []string `json:"scopes"`
		Text   string   `json:"text" minLength:"1"`
		Limit  int      `json:"limit,omitempty" doc:"Defaults to 10"`
	}
}
type queryOutput struct {
	Body struct {
		Learnings []LearningView `json:"learnings"`
		Hits      map[string]int `json:"hits"`
	}
}

type injectTraceInput struct {
	Body struct {
		Scopes    []string `json:"scopes"`
		Context   string   `json:"context" minLength:"1"`
		Limit     int      `json:"limit,omitempty" doc:"Defaults to 5"`
		Threshold float64  `json:"threshold,omitempty"`
	}
}
type injectTraceOutput struct {
	Body TraceView
}

type statsOutput struct {
	Body StatsView
}

type runRetentionOutput struct {
	Body struct {
		Deleted int      `json:"deleted"`
		Reasons []string `json:"reasons"`
	}
}

type putSecretInput struct {
	Name string `path:"name"`
	Body struct {
		Scope string `json:"scope" minLength:"1"`
		Value string `json:"value"`
	}
}
type secretOutput struct {
	Body SecretView
}

type getSecretInput struct {
	Name  string `path:"name"`
	Scope string `query:"scope" required:"true"`
}

type runIDInput struct {
	RunID string `path:"runId"`
}
type stateOutput struct {
	Body WorkingStateView
}

type upsertStateInput struct {
	RunID string `path:"runId"`
	Body  struct {
		State     StatePayloadView `json:"state"`
		UpdatedBy string           `json:"updated_by,omitempty"`
	}
}

type patchStateInput struct {
	RunID string `path:"runId"`
	Body  struct {
		Goal          *string         `json:"goal,omitempty"`
		Assumptions   *[]string       `json:"assumptions,omitempty"`
		Decisions     *[]DecisionView `json:"decisions,omitempty"`
		OpenQuestions *[]string       `json:"open_questions,omitempty"`
		NextActions   *[]string       `json:"next_actions,omitempty"`
		Confidence    *float64        `json:"confidence,omitempty"`
		UpdatedBy     string          `json:"updated_by,omitempty"`
	}
}

type resolveStateInput struct {
	RunID string `path:"runId"`
	Body  struct {
		PersistToLearn bool   `json:"persist_to_learn,omitempty"`
		Scope          string `json:"scope,omitempty" doc:"Scope for the summary learning, defaults to shared"`
		SummaryStyle   string `json:"summary_style,omitempty" doc:"Summary rendering style, defaults to compact"`
		UpdatedBy      string `json:"updated_by,omitempty"`
	}
}

type addEventInput struct {
	RunID string `path:"runId"`
	Body  struct {
		EventType string         `json:"event_type" minLength:"1"`
		Payload   map[string]any `json:"payload,omitempty"`
		CreatedBy string         `json:"created_by,omitempty"`
	}
}
type addEventOutput struct {
	Body struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
}

type listEventsInput struct {
	RunID string `path:"runId"`
	Limit int    `query:"limit"`
}
type listEventsOutput struct {
	Body struct {
		Events []StateEventView `json:"events"`
	}
}

type listRevisionsInput struct {
	RunID string `path:"runId"`
	Limit int    `query:"limit"`
}
type listRevisionsOutput struct {
	Body struct {
		Revisions []StateRevisionView `json:"revisions"`
	}
}

// --- Handlers ---

func (s *Server) handleLearn(ctx context.Context, input *createLearningInput) (*createLearningOutput, error) {
	l, err := s.services.Memory.Learn(ctx, memory.LearnInput{
		Scope:      input.Body.Scope,
		Trigger:    input.Body.Trigger,
		Learning:   input.Body.Learning,
		Confidence: input.Body.Confidence,
		Reason:     input.Body.Reason,
		Source:     input.Body.Source,
	})
	if err != nil {
		return nil, mapError(err, "creating learning")
	}
	return &createLearningOutput{Body: toLearningView(l)}, nil
}

func (s *Server) handleListLearnings(ctx context.Context, input *listLearningsInput) (*listLearningsOutput, error) {
	ls, err := s.services.Memory.Learnings(ctx, store.LearningQuery{
		Scope: input.Scope,
		Limit: input.Limit,
	})
	if err != nil {
		return nil, mapError(err, "listing learnings")
	}
	out := &listLearningsOutput{}
	out.Body.Learnings = toLearningViews(ls)
	return out, nil
}

func (s *Server) handleDeleteLearning(ctx context.Context, input *learningIDInput) (*deleteLearningOutput, error) {
	if err := s.services.Memory.Delete(ctx, input.ID); err != nil {
		return nil, mapError(err, fmt.Sprintf("deleting learning %q", input.ID))
	}
	out := &deleteLearningOutput{}
	out.Body.Success = true
	return out, nil
}

func (s *Server) handleBulkDelete(ctx context.Context, input *bulkDeleteInput) (*bulkDeleteOutput, error) {
	res, err := s.services.Memory.BulkDelete(ctx, store.DeleteFilter{
		ConfidenceLT:      input.Body.ConfidenceLT,
		NotRecalledInDays: input.Body.NotRecalledInDays,
		Scope:             input.Body.Scope,
	})
	if err != nil {
		return nil, mapError(err, "bulk deleting learnings")
	}
	out := &bulkDeleteOutput{}
	out.Body.Deleted = res.Deleted
	out.Body.IDs = res.IDs
	if out.Body.IDs == nil {
		out.Body.IDs = []string{}
	}
	return out, nil
}

func (s *Server) handleRescope(ctx context.Context, input *rescopeInput) (*createLearningOutput, error) {
	l, err := s.services.Memory.Rescope(ctx, input.ID, input.Body.Scope)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("learning %q not found", input.ID))
	}
	return &createLearningOutput{Body: toLearningView(l)}, nil
}

func (s *Server) handleNeighbors(ctx context.Context, input *neighborsInput) (*neighborsOutput, error) {
	neighbors := s.services.Retrieval.Neighbors(ctx, input.ID, input.Threshold, input.Limit)

	out := &neighborsOutput{}
	out.Body.Neighbors = make([]NeighborView, len(neighbors))
	for i, n := range neighbors {
		out.Body.Neighbors[i] = NeighborView{
			LearningView:    toLearningView(n.Learning),
			SimilarityScore: n.Similarity,
		}
	}
	return out, nil
}

func (s *Server) handleInject(ctx context.Context, input *injectInput) (*injectOutput, error) {
	res := s.services.Retrieval.Inject(ctx, input.Body.Scopes, input.Body.Context,
		input.Body.Limit, input.Body.Threshold, input.Body.Format)

	out := &injectOutput{}
	out.Body.Prompt = res.Prompt
	out.Body.Learnings = toLearningViews(res.Learnings)
	return out, nil
}

func (s *Server) handleQuery(ctx context.Context, input *queryInput) (*queryOutput, error) {
	res := s.services.Retrieval.Query(ctx, input.Body.Scopes, input.Body.Text, input.Body.Limit)

	out := &queryOutput{}
	out.Body.Learnings = toLearningViews(res.Learnings)
	out.Body.Hits = res.Hits
	return out, nil
}

func (s *Server) handleInjectTrace(ctx context.Context, input *injectTraceInput) (*injectTraceOutput, error) {
	res := s.services.Retrieval.InjectTrace(ctx, input.Body.Scopes, input.Body.Context,
		input.Body.Limit, input.Body.Threshold)
	return &injectTraceOutput{Body: toTraceView(res)}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	stats, err := s.services.Memory.Stats(ctx)
	if err != nil {
		return nil, mapError(err, "reading stats")
	}
	return &statsOutput{Body: toStatsView(stats)}, nil
}

func (s *Server) handleRunRetention(ctx context.Context, _ *struct{}) (*runRetentionOutput, error) {
	res, err := s.services.Retention.Run(ctx)
	if err != nil {
		return nil, mapError(err, "running retention sweep")
	}
	out := &runRetentionOutput{}
	out.Body.Deleted = res.Deleted
	out.Body.Reasons = res.Reasons
	if out.Body.Reasons == nil {
		out.Body.Reasons = []string{}
	}
	return out, nil
}

func (s *Server) handlePutSecret(ctx context.Context, input *putSecretInput) (*secretOutput, error) {
	secret, err := s.services.Memory.PutSecret(ctx, input.Name, input.Body.Scope, input.Body.Value)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("storing secret %q", input.Name))
	}
	return &secretOutput{Body: toSecretView(secret)}, nil
}

func (s *Server) handleGetSecret(ctx context.Context, input *getSecretInput) (*secretOutput, error) {
	secret, err := s.services.Memory.GetSecret(ctx, input.Name, input.Scope)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("secret %q not found in scope %q", input.Name, input.Scope))
	}
	return &secretOutput{Body: toSecretView(secret)}, nil
}

func (s *Server) handleGetState(ctx context.Context, input *runIDInput) (*stateOutput, error) {
	ws, err := s.services.State.Get(ctx, input.RunID)
	if err != nil {
		return nil, mapError(err, "reading working state")
	}
	if ws == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("run %q not found", input.RunID))
	}
	return &stateOutput{Body: toWorkingStateView(ws)}, nil
}

func (s *Server) handleUpsertState(ctx context.Context, input *upsertStateInput) (*stateOutput, error) {
	ws, err := s.services.State.Upsert(ctx, input.RunID,
		fromStatePayloadView(input.Body.State), input.Body.UpdatedBy)
	if err != nil {
		return nil, mapError(err, "upserting working state")
	}
	return &stateOutput{Body: toWorkingStateView(ws)}, nil
}

func (s *Server) handlePatchState(ctx context.Context, input *patchStateInput) (*stateOutput, error) {
	patch := state.Patch{
		Goal:          input.Body.Goal,
		Assumptions:   input.Body.Assumptions,
		OpenQuestions: input.Body.OpenQuestions,
		NextActions:   input.Body.NextActions,
		Confidence:    input.Body.Confidence,
	}
	if input.Body.Decisions != nil {
		decisions := make([]store.Decision, len(*input.Body.Decisions))
		for i, d := range *input.Body.Decisions {
			decisions[i] = store.Decision{Text: d.Text, Status: d.Status}
		}
		patch.Decisions = &decisions
	}

	ws, err := s.services.State.PatchState(ctx, input.RunID, patch, input.Body.UpdatedBy)
	if err != nil {
		return nil, mapError(err, "patching working state")
	}
	return &stateOutput{Body: toWorkingStateView(ws)}, nil
}

func (s *Server) handleResolveState(ctx context.Context, input *resolveStateInput) (*stateOutput, error) {
	ws, err := s.services.State.Resolve(ctx, input.RunID, state.ResolveOptions{
		PersistToLearn: input.Body.PersistToLearn,
		Scope:          input.Body.Scope,
		SummaryStyle:   input.Body.SummaryStyle,
		UpdatedBy:      input.Body.UpdatedBy,
	})
	if err != nil {
		return nil, mapError(err, "resolving working state")
	}
	if ws == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("run %q not found", input.RunID))
	}
	return &stateOutput{Body: toWorkingStateView(ws)}, nil
}

func (s *Server) handleAddEvent(ctx context.Context, input *addEventInput) (*addEventOutput, error) {
	id, err := s.services.State.AddEvent(ctx, input.RunID, input.Body.EventType,
		input.Body.Payload, input.Body.CreatedBy)
	if err != nil {
		return nil, mapError(err, "appending state event")
	}
	out := &addEventOutput{}
	out.Body.Success = true
	out.Body.ID = id
	return out, nil
}

func (s *Server) handleListEvents(ctx context.Context, input *listEventsInput) (*listEventsOutput, error) {
	events, err := s.services.State.Events(ctx, input.RunID, input.Limit)
	if err != nil {
		return nil, mapError(err, "listing state events")
	}

	out := &listEventsOutput{}
	out.Body.Events = make([]StateEventView, len(events))
	for i, ev := range events {
		out.Body.Events[i] = StateEventView{
			ID:        ev.ID,
			RunID:     ev.RunID,
			EventType: ev.EventType,
			Payload:   ev.Payload,
			CreatedBy: ev.CreatedBy,
			CreatedAt: ev.CreatedAt,
		}
	}
	return out, nil
}

func (s *Server) handleListRevisions(ctx context.Context, input *listRevisionsInput) (*listRevisionsOutput, error) {
	revs, err := s.services.State.Revisions(ctx, input.RunID, input.Limit)
	if err != nil {
		return nil, mapError(err, "listing state revisions")
	}

	out := &listRevisionsOutput{}
	out.Body.Revisions = make([]StateRevisionView, len(revs))
	for i, r := range revs {
		out.Body.Revisions[i] = StateRevisionView{
			RunID:         r.RunID,
			Revision:      r.Revision,
			State:         toStatePayloadView(r.State),
			ChangeSummary: r.ChangeSummary,
			UpdatedBy:     r.UpdatedBy,
			CreatedAt:     r.CreatedAt,
		}
	}
	return out, nil
}
