// Package ctxutil provides shared context key accessors.
//
// This package exists to break the circular dependency between server and mcp:
// server mounts the MCP handler, and mcp needs to read the request identity
// that server's middleware populates. Both packages import ctxutil instead of
// each other.
package ctxutil

import "context"

type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyAgent     contextKey = "agent"
)

// WithRequestID returns a new context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext extracts the request id from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithAgent returns a new context carrying the calling agent's name,
// as declared in the X-Shikko-Agent header.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, keyAgent, agent)
}

// AgentFromContext extracts the calling agent's name from the context.
// Empty when the caller did not identify itself.
func AgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyAgent).(string); ok {
		return v
	}
	return ""
}
