package server

import (
	"time"

	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/handoff"
	"github.com/ashita-ai/shikko/strategy"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// RunRequest is the request body for POST /v1/run.
type RunRequest struct {
	Strategy string         `json:"strategy"`
	Input    map[string]any `json:"input"`
	Options  *RunOptions    `json:"options,omitempty"`
}

// RunOptions overrides the server's execution defaults for one run.
// Nil fields keep the configured default.
type RunOptions struct {
	FailFast  *bool  `json:"fail_fast,omitempty"`
	TimeoutMs *int64 `json:"timeout_ms,omitempty"`
	Verbose   *bool  `json:"verbose,omitempty"`
}

// RunResponse is the result envelope for POST /v1/run. The run id resolves
// the same run later via GET /v1/runs/{run_id}.
type RunResponse struct {
	RunID string `json:"run_id"`
	strategy.Result[docgen.Document]
}

// RunRecordResponse is one history entry in GET /v1/runs.
type RunRecordResponse struct {
	ID         string    `json:"id"`
	Strategy   string    `json:"strategy"`
	OK         bool      `json:"ok"`
	Code       string    `json:"code,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
}

// HandoffCreateRequest is the request body for POST /v1/handoffs.
// Task is the shorthand form; Instructions, when set, wins.
type HandoffCreateRequest struct {
	Source            string                `json:"source"`
	Target            string                `json:"target"`
	Task              string                `json:"task,omitempty"`
	Instructions      *handoff.Instructions `json:"instructions,omitempty"`
	Context           handoff.Context       `json:"context"`
	Priority          string                `json:"priority,omitempty"`
	ExpirationMinutes int                   `json:"expiration_minutes,omitempty"`
	Seal              bool                  `json:"seal,omitempty"`
}

// HandoffCreateResponse is the response for POST /v1/handoffs.
type HandoffCreateResponse struct {
	Package *handoff.Package `json:"package"`
	Sealed  string           `json:"sealed,omitempty"`
}

// HandoffStatusRequest is the request body for PATCH /v1/handoffs/{handoff_id}/status.
type HandoffStatusRequest struct {
	Status string `json:"status"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Strategies int    `json:"strategies"`
	RunsHeld   int    `json:"runs_held"`
	Handoffs   int    `json:"handoffs"`
	Uptime     int64  `json:"uptime_seconds"`
}

// VersionResponse is the response for GET /v1/version.
type VersionResponse struct {
	Version string `json:"version"`
}
