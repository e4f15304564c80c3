// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chasewhip8/mnemonic-sub000/internal/embedder"
	"github.com/Chasewhip8/mnemonic-sub000/internal/memory"
	"github.com/Chasewhip8/mnemonic-sub000/internal/retention"
	"github.com/Chasewhip8/mnemonic-sub000/internal/retrieval"
	"github.com/Chasewhip8/mnemonic-sub000/internal/server"
	"github.com/Chasewhip8/mnemonic-sub000/internal/state"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store/sqlite"
)

const testDims = 8

// newServer wires a full stack against temp-dir sqlite stores.
func newServer(t *testing.T) *server.Server {
	t.Helper()

	dir := t.TempDir()
	ls, err := sqlite.NewLearningStore(filepath.Join(dir, "memory.db"), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })

	ss, err := sqlite.NewStateStore(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	embed := embedder.NewLocal(testDims)
	retry := store.DefaultRetryPolicy()

	memSvc := memory.NewService(ls, sqlite.NewSecretStoreWithDB(ls.DB()), embed, retry, nil)
	engine := retrieval.NewEngine(ls, sqlite.NewVectorIndexWithDB(ls.DB()), embed, retry, nil)
	stateSvc := state.NewService(ss, memSvc, retry, nil)
	policy := retention.NewPolicy(ls, retry, retention.DefaultConfig(), nil)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	srv.RegisterServices(&server.Services{
		Memory:    memSvc,
		Retrieval: engine,
		State:     stateSvc,
		Retention: policy,
	})
	return srv
}

func doJSON(t *testing.T, srv *server.Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded),
			"body: %s", rec.Body.String())
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestLearnAndInjectFlow(t *testing.T) {
	srv := newServer(t)

	rec, created := doJSON(t, srv, http.MethodPost, "/api/v1/learnings", `{
		"scope": "shared",
		"trigger": "deploying to production",
		"learning": "run dry-run first",
		"confidence": 0.9
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Nil(t, created["embedding"], "embedding must not leak outward")

	rec, injected := doJSON(t, srv, http.MethodPost, "/api/v1/inject", `{
		"scopes": ["shared"],
		"context": "When deploying to production, run dry-run first"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	learnings := injected["learnings"].([]any)
	require.Len(t, learnings, 1)
	assert.Equal(t, id, learnings[0].(map[string]any)["id"])
	assert.Contains(t, injected["prompt"], "When deploying to production")

	// Inject bumped recall, visible through the list endpoint.
	rec, listed := doJSON(t, srv, http.MethodGet, "/api/v1/learnings?scope=shared", "")
	require.Equal(t, http.StatusOK, rec.Code)
	row := listed["learnings"].([]any)[0].(map[string]any)
	assert.GreaterOrEqual(t, row["recall_count"].(float64), float64(1))
}

func TestInjectEmptyScopesReturnsEmpty(t *testing.T) {
	srv := newServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/inject", `{
		"scopes": [],
		"context": "anything"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["prompt"])
}

func TestLearnRejectsInvalidScope(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/learnings", `{
		"scope": "global",
		"trigger": "t",
		"learning": "l"
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteLearningIsIdempotent(t *testing.T) {
	srv := newServer(t)

	rec, body := doJSON(t, srv, http.MethodDelete, "/api/v1/learnings/does-not-exist", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestBulkDeleteRequiresFilter(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/learnings/bulk-delete", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/learnings/bulk-delete", `{"scope": "shared"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["deleted"])
}

func TestRescopeMissingLearning(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/learnings/nope/rescope", `{"scope": "shared"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNeighborsOfUnknownLearningIsEmpty(t *testing.T) {
	srv := newServer(t)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/v1/learnings/nope/neighbors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["neighbors"])
}

func TestStats(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/learnings", `{
		"scope": "shared", "trigger": "t", "learning": "l"
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total_learnings"])
}

func TestRetentionRun(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/learnings", `{
		"scope": "shared", "trigger": "t", "learning": "l", "confidence": 0.1
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/retention/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["deleted"])
}

func TestSecretRoundTrip(t *testing.T) {
	srv := newServer(t)

	rec, put := doJSON(t, srv, http.MethodPut, "/api/v1/secrets/api-token", `{
		"scope": "agent:planner", "value": "hunter2"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hunter2", put["value"])

	rec, got := doJSON(t, srv, http.MethodGet, "/api/v1/secrets/api-token?scope=agent:planner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hunter2", got["value"])

	rec, _ = doJSON(t, srv, http.MethodGet, "/api/v1/secrets/api-token?scope=shared", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/v1/state/run-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, ws := doJSON(t, srv, http.MethodPut, "/api/v1/state/run-1", `{
		"state": {"goal": "ship it", "next_actions": ["tag release"]},
		"updated_by": "agent-a"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), ws["revision"])
	assert.Equal(t, "active", ws["status"])

	rec, ws = doJSON(t, srv, http.MethodPatch, "/api/v1/state/run-1", `{
		"next_actions": ["write changelog"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), ws["revision"])
	stateBody := ws["state"].(map[string]any)
	assert.Equal(t, "ship it", stateBody["goal"])

	rec, ev := doJSON(t, srv, http.MethodPost, "/api/v1/state/run-1/events", `{
		"event_type": "tool_call", "payload": {"tool": "search"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, ev["success"])

	rec, ws = doJSON(t, srv, http.MethodPost, "/api/v1/state/run-1/resolve", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "resolved", ws["status"])
	assert.Equal(t, float64(2), ws["revision"])

	rec, revs := doJSON(t, srv, http.MethodGet, "/api/v1/state/run-1/revisions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, revs["revisions"].([]any), 2)

	rec, events := doJSON(t, srv, http.MethodGet, "/api/v1/state/run-1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, events["events"].([]any), 1)
}

func TestResolveUnknownRun(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/state/nope/resolve", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenAPIServed(t *testing.T) {
	srv := newServer(t)

	rec, _ := doJSON(t, srv, http.MethodGet, "/openapi.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Mnemonic"),
		fmt.Sprintf("unexpected openapi body: %.100s", rec.Body.String()))
}
