// Package mcp implements the Model Context Protocol server for shikko.
//
// The MCP server exposes the same capabilities as the HTTP API through
// MCP tools and resources, so MCP-compatible agents can run strategies
// and pass handoffs without speaking the REST surface.
package mcp

import (
	"log/slog"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/handoff"
	"github.com/ashita-ai/shikko/internal/history"
)

// Server wraps the MCP server with shikko's execution surface.
type Server struct {
	mcpServer *mcpserver.MCPServer
	catalog   *docgen.Catalog
	registry  *handoff.Registry
	history   *history.Store
	logger    *slog.Logger

	runTimeout time.Duration
}

// Deps holds the dependencies for creating a Server.
type Deps struct {
	Catalog    *docgen.Catalog
	Registry   *handoff.Registry
	History    *history.Store
	Logger     *slog.Logger
	Version    string
	RunTimeout time.Duration
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		catalog:    deps.Catalog,
		registry:   deps.Registry,
		history:    deps.History,
		logger:     deps.Logger,
		runTimeout: deps.RunTimeout,
	}
	if s.runTimeout <= 0 {
		s.runTimeout = 30 * time.Second
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"shikko",
		deps.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()
	s.registerResources()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
