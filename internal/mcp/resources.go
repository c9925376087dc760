package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// shikko://runs/recent — the run history, newest first.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"shikko://runs/recent",
			"Recent Runs",
			mcplib.WithResourceDescription("Recently executed strategy runs, newest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRunsRecent,
	)

	// shikko://runs/{id}/trace — one run's execution trace as markdown.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"shikko://runs/{id}/trace",
			"Run Trace",
			mcplib.WithTemplateDescription("Execution trace for a specific run, rendered as markdown"),
			mcplib.WithTemplateMIMEType("text/markdown"),
		),
		s.handleRunTrace,
	)

	// shikko://handoffs/{id} — a handoff package rendered for reading.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"shikko://handoffs/{id}",
			"Handoff Package",
			mcplib.WithTemplateDescription("A handoff package rendered as a markdown brief"),
			mcplib.WithTemplateMIMEType("text/markdown"),
		),
		s.handleHandoffResource,
	)
}

func (s *Server) handleRunsRecent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	records := s.history.Recent(20)

	type entry struct {
		ID         string  `json:"id"`
		Strategy   string  `json:"strategy"`
		OK         bool    `json:"ok"`
		Code       string  `json:"code,omitempty"`
		DurationMs float64 `json:"duration_ms"`
	}
	out := make([]entry, len(records))
	for i, rec := range records {
		out[i] = entry{
			ID:         rec.ID.String(),
			Strategy:   rec.Strategy,
			OK:         rec.OK,
			Code:       rec.Code,
			DurationMs: rec.DurationMs,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal recent runs: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "shikko://runs/recent",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRunTrace(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	raw := strings.TrimSuffix(strings.TrimPrefix(uri, "shikko://runs/"), "/trace")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid run trace URI: %s", uri)
	}

	rec, ok := s.history.Get(id)
	if !ok {
		return nil, fmt.Errorf("mcp: run %s not found", id)
	}
	if rec.Trace == nil {
		return nil, fmt.Errorf("mcp: run %s has no trace recorded", id)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     rec.Trace.Markdown(),
		},
	}, nil
}

func (s *Server) handleHandoffResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	raw := strings.TrimPrefix(uri, "shikko://handoffs/")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid handoff URI: %s", uri)
	}

	pkg, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("mcp: handoff %s not found", id)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     pkg.Markdown(),
		},
	}, nil
}
