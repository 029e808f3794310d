package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the memory store and, when configured, Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("readiness: store ping failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			s.logger.Warn("readiness: redis ping failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Search endpoints

// searchRequest represents a memory search request
// @Description Memory search request
type searchRequest struct {
	Query               string               `json:"query" example:"slow deploys"`
	Mode                domain.SearchMode    `json:"mode,omitempty" example:"hybrid" enums:"hybrid,fulltext,semantic"`
	Limit               int                  `json:"limit,omitempty" example:"10"`
	Filters             domain.SearchFilters `json:"filters"`
	MinScore            float64              `json:"min_score,omitempty"`
	SimilarityThreshold float64              `json:"similarity_threshold,omitempty"`
	Hybrid              domain.HybridOptions `json:"hybrid"`
}

// handleSearch godoc
// @Summary      Search memories
// @Description  Searches memories visible to the caller with fulltext, semantic or hybrid ranking. Degraded modalities are reported in metadata.fallback_reason.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      searchRequest  true  "Search query"
// @Success      200      {object}  domain.SearchResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      500      {object}  ErrorResponse  "Search failed"
// @Router       /memories/search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filters := req.Filters
	filters.Visibility = domain.NewCallerVisibility(GetCaller(r.Context()))

	resp, err := s.searchService.Search(r.Context(), domain.SearchRequest{
		Mode:                req.Mode,
		Query:               req.Query,
		Filters:             filters,
		Limit:               req.Limit,
		MinScore:            req.MinScore,
		SimilarityThreshold: req.SimilarityThreshold,
		Hybrid:              req.Hybrid,
	})
	if err != nil {
		s.writeServiceError(w, err, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleExpand godoc
// @Summary      Preview query expansion
// @Description  Returns the expansion trace for a query without searching
// @Tags         Search
// @Produce      json
// @Security     BearerAuth
// @Param        q    query     string  true  "Query"
// @Success      200  {object}  domain.ExpansionTrace
// @Failure      400  {object}  ErrorResponse  "Missing query"
// @Router       /search/expand [get]
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	if s.expander == nil {
		trace := domain.NewExpansionTrace(q)
		trace.DisabledReason = domain.ExpansionDisabledReason
		writeJSON(w, http.StatusOK, trace)
		return
	}

	writeJSON(w, http.StatusOK, s.expander.Expand(r.Context(), q))
}

// Memory endpoints

// handleCreateMemory godoc
// @Summary      Create memory
// @Description  Records a memory owned by the caller and computes its embedding
// @Tags         Memories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.CreateMemoryRequest  true  "Memory"
// @Success      201      {object}  domain.Memory
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      403      {object}  ErrorResponse  "Not a member of the organization"
// @Router       /memories [post]
func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := s.memoryService.Create(r.Context(), GetCaller(r.Context()), req)
	if err != nil {
		s.writeServiceError(w, err, "failed to create memory")
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// handleGetMemory godoc
// @Summary      Get memory
// @Tags         Memories
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Memory ID"
// @Success      200  {object}  domain.Memory
// @Failure      404  {object}  ErrorResponse  "Memory not found"
// @Router       /memories/{id} [get]
func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	m, err := s.memoryService.Get(r.Context(), GetCaller(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err, "failed to get memory")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleUpdateMemory godoc
// @Summary      Update memory content
// @Description  Patches textual fields and refreshes the embedding
// @Tags         Memories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Memory ID"
// @Param        request  body      domain.UpdateMemoryRequest  true  "Fields to change"
// @Success      200      {object}  domain.Memory
// @Failure      403      {object}  ErrorResponse  "Not the owner"
// @Failure      404      {object}  ErrorResponse  "Memory not found"
// @Router       /memories/{id} [patch]
func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := s.memoryService.UpdateContent(r.Context(), GetCaller(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeServiceError(w, err, "failed to update memory")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleMemoryFeedback godoc
// @Summary      Adjust memory feedback
// @Description  Upvotes or downvotes a memory. The score feeds the hybrid ranking.
// @Tags         Memories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Memory ID"
// @Param        request  body      domain.FeedbackRequest  true  "Feedback delta"
// @Success      200      {object}  domain.Memory
// @Failure      400      {object}  ErrorResponse  "Invalid delta"
// @Failure      404      {object}  ErrorResponse  "Memory not found"
// @Router       /memories/{id}/feedback [post]
func (s *Server) handleMemoryFeedback(w http.ResponseWriter, r *http.Request) {
	var req domain.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := s.memoryService.AdjustFeedback(r.Context(), GetCaller(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeServiceError(w, err, "failed to adjust feedback")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleArchiveMemory godoc
// @Summary      Archive memory
// @Tags         Memories
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Memory ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Memory not found"
// @Router       /memories/{id}/archive [post]
func (s *Server) handleArchiveMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.memoryService.Archive(r.Context(), GetCaller(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, err, "failed to archive memory")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// Admin endpoints

type backfillRequest struct {
	BatchSize int `json:"batch_size,omitempty" example:"100"`
}

// BackfillResponse reports how many memories received an embedding
// @Description Embedding backfill result
type BackfillResponse struct {
	Updated int  `json:"updated" example:"42"`
	Enabled bool `json:"enabled"`
}

// handleBackfill godoc
// @Summary      Backfill embeddings
// @Description  Embeds stored memories that lack a vector. Superuser only.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      backfillRequest  false  "Batch size"
// @Success      200      {object}  BackfillResponse
// @Failure      403      {object}  ErrorResponse  "Superuser access required"
// @Router       /admin/embeddings/backfill [post]
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.BatchSize <= 0 {
		req.BatchSize = s.backfillBatch
	}

	updated, err := s.embeddingService.BackfillMissingEmbeddings(r.Context(), req.BatchSize)
	if err != nil {
		s.writeServiceError(w, err, "backfill failed")
		return
	}

	writeJSON(w, http.StatusOK, BackfillResponse{
		Updated: updated,
		Enabled: s.embeddingService.Enabled(),
	})
}

// writeServiceError maps domain errors to HTTP status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		s.logger.Error(fallback, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
