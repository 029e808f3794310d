package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/metrics"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     chi.Router
	version    string
	logger     *slog.Logger

	// Services
	searchService    driving.SearchService
	memoryService    driving.MemoryService
	embeddingService driving.EmbeddingService
	expander         driving.QueryExpander // may be nil

	// Infrastructure
	tokenParser driven.TokenParser
	db          Pinger // store health check
	redisClient Pinger // Redis health check (optional)

	allowAnonymous bool
	backfillBatch  int
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// AllowAnonymous lets requests without a token search public memories
	AllowAnonymous bool

	// BackfillBatchSize is used when a backfill request does not set one
	BackfillBatchSize int

	// CORSOrigins enables CORS for the listed origins
	CORSOrigins []string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		Version:           "dev",
		BackfillBatchSize: 100,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	searchService driving.SearchService,
	memoryService driving.MemoryService,
	embeddingService driving.EmbeddingService,
	expander driving.QueryExpander, // can be nil
	tokenParser driven.TokenParser,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BackfillBatchSize <= 0 {
		cfg.BackfillBatchSize = 100
	}

	s := &Server{
		router:           chi.NewRouter(),
		version:          cfg.Version,
		logger:           logger.With("component", "http"),
		searchService:    searchService,
		memoryService:    memoryService,
		embeddingService: embeddingService,
		expander:         expander,
		tokenParser:      tokenParser,
		db:               db,
		redisClient:      redisClient,
		allowAnonymous:   cfg.AllowAnonymous,
		backfillBatch:    cfg.BackfillBatchSize,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg.CORSOrigins)
	return s
}

// Handler returns the root handler, for tests and embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(corsOrigins []string) {
	s.router.Use(NewRecoveryMiddleware(s.logger).Handler)
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(NewLoggingMiddleware(s.logger).Handler)
	s.router.Use(metrics.Middleware)
	if len(corsOrigins) > 0 {
		s.router.Use(NewCORSMiddleware(corsOrigins).Handler)
	}

	authMiddleware := NewAuthMiddleware(s.tokenParser, s.allowAnonymous)

	// Health endpoints (no auth)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/version", s.handleVersion)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/memories/search", s.handleSearch)
		r.Get("/search/expand", s.handleExpand)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireUser)

			r.Post("/memories", s.handleCreateMemory)
			r.Get("/memories/{id}", s.handleGetMemory)
			r.Patch("/memories/{id}", s.handleUpdateMemory)
			r.Post("/memories/{id}/feedback", s.handleMemoryFeedback)
			r.Post("/memories/{id}/archive", s.handleArchiveMemory)
		})

		r.With(authMiddleware.RequireSuperuser).
			Post("/admin/embeddings/backfill", s.handleBackfill)
	})
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
