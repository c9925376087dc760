package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/shikko/internal/ctxutil"
	"github.com/ashita-ai/shikko/internal/ratelimit"
)

// Server is the shikko HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Handler dependencies live in Handlers; optional fields
// (nil-safe): Limiter, MCPServer, CORSAllowedOrigins.
type ServerConfig struct {
	Handlers *Handlers
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// TrustProxy allows X-Forwarded-For to identify rate limit clients.
	TrustProxy bool

	CORSAllowedOrigins []string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := cfg.Handlers

	rl := ratelimit.Middleware(cfg.Limiter, clientKeyFunc(cfg.TrustProxy), func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "too many requests")
	})

	mux := http.NewServeMux()

	// Health and version (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /v1/version", h.HandleVersion)

	// Execution surface.
	mux.Handle("GET /v1/strategies", rl(http.HandlerFunc(h.HandleListStrategies)))
	mux.Handle("POST /v1/run", rl(http.HandlerFunc(h.HandleRun)))
	mux.Handle("GET /v1/runs", rl(http.HandlerFunc(h.HandleListRuns)))
	mux.Handle("GET /v1/runs/{run_id}", rl(http.HandlerFunc(h.HandleGetRun)))
	mux.Handle("GET /v1/runs/{run_id}/trace", rl(http.HandlerFunc(h.HandleRunTrace)))

	// Handoff surface.
	mux.Handle("POST /v1/handoffs", rl(http.HandlerFunc(h.HandleCreateHandoff)))
	mux.Handle("GET /v1/handoffs", rl(http.HandlerFunc(h.HandleListHandoffs)))
	mux.Handle("GET /v1/handoffs/{handoff_id}", rl(http.HandlerFunc(h.HandleGetHandoff)))
	mux.Handle("PATCH /v1/handoffs/{handoff_id}/status", rl(http.HandlerFunc(h.HandleUpdateHandoffStatus)))
	mux.Handle("POST /v1/handoffs/parse", rl(http.HandlerFunc(h.HandleParseHandoff)))

	// MCP StreamableHTTP transport on the same mux.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// OpenAPI spec (no rate limit).
	mux.HandleFunc("GET /v1/openapi.yaml", h.HandleOpenAPISpec)

	// Middleware chain (outermost executes first):
	// request ID → security headers → CORS → tracing → logging → agent → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = agentMiddleware(handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.CORSAllowedOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// clientKeyFunc identifies the caller for rate limiting: the declared agent
// name when present, otherwise the client IP.
func clientKeyFunc(trustProxy bool) ratelimit.KeyFunc {
	return func(r *http.Request) string {
		if agent := ctxutil.AgentFromContext(r.Context()); agent != "" {
			return "agent:" + agent
		}
		if trustProxy {
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				first, _, _ := strings.Cut(fwd, ",")
				if first = strings.TrimSpace(first); first != "" {
					return "ip:" + first
				}
			}
		}
		return "ip:" + ratelimit.IPKeyFunc(r)
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Handlers returns the underlying handler set.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
