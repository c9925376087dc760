package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/handoff"
	"github.com/ashita-ai/shikko/internal/history"
	"github.com/ashita-ai/shikko/strategy"
)

func (s *Server) registerTools() {
	// shikko_run — execute a registered strategy.
	s.mcpServer.AddTool(
		mcplib.NewTool("shikko_run",
			mcplib.WithDescription(`Run a registered document strategy and get back the result with its execution trace.

WHEN TO USE: Whenever you need a structured engineering document — a
decision record, a change proposal, a runbook — produced from structured
input instead of hand-written prose. Call shikko_strategies first if you
are unsure what is registered or what fields a strategy expects.

WHAT YOU GET BACK:
- ok: whether the run succeeded
- output: the generated document (title, markdown body, sections)
- errors: field-level validation errors when ok is false
- trace: the full execution trace (decisions, metrics, warnings)
- run_id: handle for fetching this run again later

Validation failures come back as a normal result with ok=false, not as a
tool error. Read the errors array and fix the input.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("strategy",
				mcplib.Description("Name of the registered strategy to run (see shikko_strategies)"),
				mcplib.Required(),
			),
			mcplib.WithObject("input",
				mcplib.Description("Strategy input object. Field names must match the strategy's declared input fields; unknown fields are rejected."),
				mcplib.Required(),
			),
			mcplib.WithBoolean("fail_fast",
				mcplib.Description("Stop validation at the first error"),
			),
			mcplib.WithNumber("timeout_ms",
				mcplib.Description("Execution timeout in milliseconds"),
				mcplib.Min(1),
			),
		),
		s.handleRun,
	)

	// shikko_strategies — list the catalog.
	s.mcpServer.AddTool(
		mcplib.NewTool("shikko_strategies",
			mcplib.WithDescription(`List the registered strategies with their versions and input fields.

WHEN TO USE: Before the first shikko_run in a session, or when a run
fails with unknown-strategy or unknown-field errors.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleStrategies,
	)

	// shikko_handoff_prepare — package work for another agent.
	s.mcpServer.AddTool(
		mcplib.NewTool("shikko_handoff_prepare",
			mcplib.WithDescription(`Prepare a handoff package for another agent and register it for pickup.

WHEN TO USE: When you are done with your part of a task and another agent
must continue it. The package carries the task, constraints and context;
the target agent finds it with shikko_handoff_pending.

Set expiration_minutes when the work goes stale — expired packages are
swept and never delivered.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("source",
				mcplib.Description("Your agent name"),
				mcplib.Required(),
			),
			mcplib.WithString("target",
				mcplib.Description("Agent the work is addressed to"),
				mcplib.Required(),
			),
			mcplib.WithString("task",
				mcplib.Description("What the receiving agent must do, stated as an instruction"),
				mcplib.Required(),
			),
			mcplib.WithString("summary",
				mcplib.Description("Optional context summary: what happened so far, what state things are in"),
			),
			mcplib.WithString("priority",
				mcplib.Description("Delivery priority"),
				mcplib.Enum("immediate", "normal", "deferred"),
			),
			mcplib.WithNumber("expiration_minutes",
				mcplib.Description("Minutes until the package expires; omit for no expiry"),
				mcplib.Min(1),
			),
		),
		s.handleHandoffPrepare,
	)

	// shikko_handoff_pending — the pickup queue for a target.
	s.mcpServer.AddTool(
		mcplib.NewTool("shikko_handoff_pending",
			mcplib.WithDescription(`List pending handoff packages addressed to an agent, highest priority first.

WHEN TO USE: At the start of a session, and whenever you finish a task —
another agent may have queued work for you. Accept a package by calling
shikko_handoff_update_status with status "accepted".`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("target",
				mcplib.Description("Agent name to fetch the queue for"),
				mcplib.Required(),
			),
		),
		s.handleHandoffPending,
	)

	// shikko_handoff_update_status — move a package through its lifecycle.
	s.mcpServer.AddTool(
		mcplib.NewTool("shikko_handoff_update_status",
			mcplib.WithDescription(`Update the lifecycle status of a handoff package.

WHEN TO USE: "accepted" when you pick a package up, "in_progress" while
working it, "completed" or "declined" when you are done with it.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("handoff_id",
				mcplib.Description("Package id (UUID)"),
				mcplib.Required(),
			),
			mcplib.WithString("status",
				mcplib.Description("New lifecycle status"),
				mcplib.Enum("pending", "accepted", "in_progress", "completed", "declined", "expired"),
				mcplib.Required(),
			),
		),
		s.handleHandoffUpdateStatus,
	)
}

func (s *Server) handleRun(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("strategy", "")
	if name == "" {
		return errorResult("strategy is required"), nil
	}
	input, _ := request.GetArguments()["input"].(map[string]any)

	opts := []strategy.Option{
		strategy.WithLogger(s.logger),
		strategy.WithTimeout(s.runTimeout),
	}
	if request.GetBool("fail_fast", false) {
		opts = append(opts, strategy.WithFailFast(true))
	}
	if ms := request.GetFloat("timeout_ms", 0); ms > 0 {
		opts = append(opts, strategy.WithTimeout(time.Duration(ms)*time.Millisecond))
	}

	startedAt := time.Now().UTC()
	res := s.catalog.Run(ctx, name, input, opts...)

	runID := s.history.Add(history.Record{
		Strategy:   name,
		OK:         res.OK,
		Code:       res.Code,
		StartedAt:  startedAt,
		DurationMs: float64(res.DurationMs),
		Trace:      res.Trace,
	})

	return jsonResult(struct {
		RunID string `json:"run_id"`
		strategy.Result[docgen.Document]
	}{
		RunID:  runID.String(),
		Result: res,
	})
}

func (s *Server) handleStrategies(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(s.catalog.List())
}

func (s *Server) handleHandoffPrepare(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	req := handoff.Request{
		Source:       request.GetString("source", ""),
		Target:       request.GetString("target", ""),
		Instructions: request.GetString("task", ""),
		Priority:     handoff.Priority(request.GetString("priority", "")),
	}
	if summary := request.GetString("summary", ""); summary != "" {
		req.Context.Summary = summary
	}
	if mins := request.GetFloat("expiration_minutes", 0); mins > 0 {
		req.ExpirationMinutes = int(mins)
	}

	pkg, err := handoff.Prepare(req)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if err := s.registry.Register(pkg); err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(pkg)
}

func (s *Server) handleHandoffPending(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	target := request.GetString("target", "")
	if target == "" {
		return errorResult("target is required"), nil
	}
	pending := s.registry.PendingFor(target)
	if pending == nil {
		pending = []*handoff.Package{}
	}
	return jsonResult(pending)
}

func (s *Server) handleHandoffUpdateStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, err := uuid.Parse(request.GetString("handoff_id", ""))
	if err != nil {
		return errorResult("handoff_id must be a UUID"), nil
	}
	status := handoff.Status(request.GetString("status", ""))

	found, err := s.registry.UpdateStatus(id, status)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !found {
		return errorResult(fmt.Sprintf("handoff %s not found", id)), nil
	}
	pkg, _ := s.registry.Get(id)
	return jsonResult(pkg)
}

// jsonResult marshals v as indented JSON tool output.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
