package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/handoff"
	"github.com/ashita-ai/shikko/internal/history"
	"github.com/ashita-ai/shikko/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Deps{
		Catalog:  docgen.DefaultCatalog(),
		Registry: handoff.NewRegistry(),
		History:  history.NewStore(16),
		Logger:   testutil.TestLogger(),
		Version:  "test",
	})
}

// toolRequest builds a CallToolRequest with the given arguments.
func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in tool result")
	return ""
}

func parseToolJSON(t *testing.T, result *mcplib.CallToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &out))
	return out
}

func TestHandleRun_Success(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRun(context.Background(), toolRequest("shikko_run", map[string]any{
		"strategy": "runbook",
		"input": map[string]any{
			"service":  "billing",
			"scenario": "queue backlog",
			"steps":    []any{map[string]any{"action": "scale consumers"}},
		},
	}))

	require.NoError(t, err)
	require.False(t, result.IsError)
	out := parseToolJSON(t, result)
	assert.Equal(t, true, out["ok"])
	assert.NotEmpty(t, out["run_id"])
	assert.Equal(t, 1, s.history.Len())
}

func TestHandleRun_ValidationFailureIsResultNotError(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRun(context.Background(), toolRequest("shikko_run", map[string]any{
		"strategy": "runbook",
		"input":    map[string]any{"service": "billing"},
	}))

	require.NoError(t, err)
	require.False(t, result.IsError, "validation failure is an outcome, not a tool error")
	out := parseToolJSON(t, result)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "VALIDATION_FAILED", out["code"])
}

func TestHandleRun_MissingStrategy(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRun(context.Background(), toolRequest("shikko_run", map[string]any{
		"input": map[string]any{},
	}))

	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleRun_FailFastPassedThrough(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRun(context.Background(), toolRequest("shikko_run", map[string]any{
		"strategy":  "runbook",
		"input":     map[string]any{},
		"fail_fast": true,
	}))

	require.NoError(t, err)
	out := parseToolJSON(t, result)
	errs, ok := out["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestHandleStrategies(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleStrategies(context.Background(), toolRequest("shikko_strategies", nil))

	require.NoError(t, err)
	require.False(t, result.IsError)
	var listing []map[string]any
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &listing))
	assert.Len(t, listing, 3)
}

func TestHandleHandoffPrepare_RegistersPackage(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleHandoffPrepare(context.Background(), toolRequest("shikko_handoff_prepare", map[string]any{
		"source":             "planner",
		"target":             "executor",
		"task":               "finish the migration",
		"summary":            "schema is migrated, data backfill remains",
		"priority":           "immediate",
		"expiration_minutes": float64(30),
	}))

	require.NoError(t, err)
	require.False(t, result.IsError)
	out := parseToolJSON(t, result)
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, "immediate", out["priority"])
	assert.NotNil(t, out["expires_at"])
	assert.Equal(t, 1, s.registry.Len())
}

func TestHandleHandoffPrepare_MissingTask(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleHandoffPrepare(context.Background(), toolRequest("shikko_handoff_prepare", map[string]any{
		"source": "planner",
		"target": "executor",
	}))

	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleHandoffPendingAndUpdateStatus(t *testing.T) {
	s := newTestServer(t)
	prep, err := s.handleHandoffPrepare(context.Background(), toolRequest("shikko_handoff_prepare", map[string]any{
		"source": "planner",
		"target": "executor",
		"task":   "take over",
	}))
	require.NoError(t, err)
	id := parseToolJSON(t, prep)["id"].(string)

	pending, err := s.handleHandoffPending(context.Background(), toolRequest("shikko_handoff_pending", map[string]any{
		"target": "executor",
	}))
	require.NoError(t, err)
	var queue []map[string]any
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, pending)), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, id, queue[0]["id"])

	updated, err := s.handleHandoffUpdateStatus(context.Background(), toolRequest("shikko_handoff_update_status", map[string]any{
		"handoff_id": id,
		"status":     "accepted",
	}))
	require.NoError(t, err)
	require.False(t, updated.IsError)
	assert.Equal(t, "accepted", parseToolJSON(t, updated)["status"])
}

func TestHandleHandoffUpdateStatus_UnknownID(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleHandoffUpdateStatus(context.Background(), toolRequest("shikko_handoff_update_status", map[string]any{
		"handoff_id": "4f2fb200-0000-4000-8000-000000000000",
		"status":     "accepted",
	}))

	require.NoError(t, err)
	assert.True(t, result.IsError)
}
