// Package mcp exposes memory search as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
)

// ServerName is the MCP server name
const ServerName = "hindsight"

// Config holds MCP server configuration
type Config struct {
	Version string

	// Caller is the identity every tool call runs as. A nil caller searches
	// as anonymous and only sees public memories.
	Caller *domain.Caller

	// DefaultLimit applies when a tool call omits limit
	DefaultLimit int

	Logger *slog.Logger
}

// Server wraps the MCP server with the search services
type Server struct {
	mcp      *server.MCPServer
	search   driving.SearchService
	expander driving.QueryExpander // may be nil
	caller   *domain.Caller
	limit    int
	logger   *slog.Logger
}

// NewServer creates a new MCP server and registers its tools
func NewServer(cfg Config, search driving.SearchService, expander driving.QueryExpander) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	caller := cfg.Caller
	if caller == nil {
		caller = &domain.Caller{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, cfg.Version, server.WithToolCapabilities(false)),
		search:   search,
		expander: expander,
		caller:   caller,
		limit:    cfg.DefaultLimit,
		logger:   logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", "user_id", s.caller.UserID)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchMemoriesTool(), s.handleSearchMemories)
	s.mcp.AddTool(expandQueryTool(), s.handleExpandQuery)
}
