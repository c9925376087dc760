package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/shikko/handoff"
)

func createHandoff(t *testing.T, env *testEnv, body map[string]any) map[string]any {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/handoffs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[map[string]any](t, rec)
}

func TestCreateHandoff_TaskShorthand(t *testing.T) {
	env := newTestEnv(t)

	data := createHandoff(t, env, map[string]any{
		"source": "planner",
		"target": "executor",
		"task":   "ship the release",
	})

	pkg := data["package"].(map[string]any)
	assert.Equal(t, "pending", pkg["status"])
	assert.Equal(t, "normal", pkg["priority"])
	assert.Equal(t, "ship the release", pkg["instructions"].(map[string]any)["task"])
	assert.Equal(t, 1, env.registry.Len())
}

func TestCreateHandoff_StructuredInstructionsWinOverTask(t *testing.T) {
	env := newTestEnv(t)

	data := createHandoff(t, env, map[string]any{
		"source": "planner",
		"target": "executor",
		"task":   "ignored",
		"instructions": map[string]any{
			"task":        "migrate the database",
			"constraints": []any{"no downtime"},
		},
	})

	instr := data["package"].(map[string]any)["instructions"].(map[string]any)
	assert.Equal(t, "migrate the database", instr["task"])
}

func TestCreateHandoff_MissingTargetRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/handoffs", map[string]any{
		"source": "planner",
		"task":   "x",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "target")
}

func TestCreateHandoff_SealedResponseOpens(t *testing.T) {
	env := newTestEnv(t)

	data := createHandoff(t, env, map[string]any{
		"source": "planner",
		"target": "executor",
		"task":   "sealed delivery",
		"seal":   true,
	})

	sealed, ok := data["sealed"].(string)
	require.True(t, ok)
	require.NotEmpty(t, sealed)

	pkg, err := env.sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sealed delivery", pkg.Instructions.Task)
}

func TestListHandoffs_PendingPriorityOrder(t *testing.T) {
	env := newTestEnv(t)
	createHandoff(t, env, map[string]any{
		"source": "a", "target": "executor", "task": "later", "priority": "deferred",
	})
	createHandoff(t, env, map[string]any{
		"source": "a", "target": "executor", "task": "now", "priority": "immediate",
	})
	createHandoff(t, env, map[string]any{
		"source": "a", "target": "somebody-else", "task": "not yours",
	})

	rec := env.do(t, http.MethodGet, "/v1/handoffs?target=executor", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData[[]map[string]any](t, rec)
	require.Len(t, data, 2)
	assert.Equal(t, "now", data[0]["instructions"].(map[string]any)["task"])
	assert.Equal(t, "later", data[1]["instructions"].(map[string]any)["task"])
}

func TestListHandoffs_TargetRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/handoffs", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHandoff_JSONAndMarkdown(t *testing.T) {
	env := newTestEnv(t)
	data := createHandoff(t, env, map[string]any{
		"source": "planner", "target": "executor", "task": "render me",
	})
	id := data["package"].(map[string]any)["id"].(string)

	rec := env.do(t, http.MethodGet, "/v1/handoffs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pkg := decodeData[map[string]any](t, rec)
	assert.Equal(t, id, pkg["id"])

	req := httptest.NewRequest(http.MethodGet, "/v1/handoffs/"+id, nil)
	req.Header.Set("Accept", "text/markdown")
	mdRec := httptest.NewRecorder()
	env.handler.ServeHTTP(mdRec, req)
	require.Equal(t, http.StatusOK, mdRec.Code)
	assert.Contains(t, mdRec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, mdRec.Body.String(), "# Agent Handoff: planner → executor")
}

func TestUpdateHandoffStatus(t *testing.T) {
	env := newTestEnv(t)
	data := createHandoff(t, env, map[string]any{
		"source": "planner", "target": "executor", "task": "accept me",
	})
	id := data["package"].(map[string]any)["id"].(string)

	rec := env.do(t, http.MethodPatch, "/v1/handoffs/"+id+"/status", map[string]any{
		"status": "accepted",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", decodeData[map[string]any](t, rec)["status"])
}

func TestUpdateHandoffStatus_InvalidStatus(t *testing.T) {
	env := newTestEnv(t)
	data := createHandoff(t, env, map[string]any{
		"source": "planner", "target": "executor", "task": "x",
	})
	id := data["package"].(map[string]any)["id"].(string)

	rec := env.do(t, http.MethodPatch, "/v1/handoffs/"+id+"/status", map[string]any{
		"status": "finished",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateHandoffStatus_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/v1/handoffs/9b3ad0e2-0000-4000-8000-000000000000/status", map[string]any{
		"status": "accepted",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseHandoff_RawDocument(t *testing.T) {
	env := newTestEnv(t)
	pkg, err := handoff.Prepare(handoff.Request{
		Source: "planner", Target: "executor", Instructions: "parse me",
	})
	require.NoError(t, err)
	raw, err := pkg.JSON()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/handoffs/parse", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pkg.ID.String(), decodeData[map[string]any](t, rec)["id"])
}

func TestParseHandoff_SealedEnvelope(t *testing.T) {
	env := newTestEnv(t)
	pkg, err := handoff.Prepare(handoff.Request{
		Source: "planner", Target: "executor", Instructions: "sealed parse",
	})
	require.NoError(t, err)
	sealed, err := env.sealer.Seal(pkg)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/v1/handoffs/parse", map[string]any{"sealed": sealed})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pkg.ID.String(), decodeData[map[string]any](t, rec)["id"])
}

func TestParseHandoff_VersionMismatchRejected(t *testing.T) {
	env := newTestEnv(t)
	doc := map[string]any{
		"id":           "9b3ad0e2-0000-4000-8000-000000000001",
		"version":      "2.0",
		"source":       "planner",
		"target":       "executor",
		"created_at":   "2026-08-24T10:00:00Z",
		"status":       "pending",
		"priority":     "normal",
		"instructions": map[string]any{"task": "newer schema"},
	}
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/handoffs/parse", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "version")
}
