package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driving"
)

// Ensure memoryService implements MemoryService
var _ driving.MemoryService = (*memoryService)(nil)

// memoryService implements the MemoryService interface
type memoryService struct {
	store      driven.MemoryStore
	embeddings driving.EmbeddingService
	logger     *slog.Logger
}

// NewMemoryService creates a new MemoryService
func NewMemoryService(store driven.MemoryStore, embeddings driving.EmbeddingService, logger *slog.Logger) driving.MemoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &memoryService{
		store:      store,
		embeddings: embeddings,
		logger:     logger.With("component", "memory"),
	}
}

// Create records a new memory and computes its embedding when enabled
func (s *memoryService) Create(ctx context.Context, caller *domain.Caller, req domain.CreateMemoryRequest) (*domain.Memory, error) {
	if caller.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, domain.NewCallerError("content", domain.ErrEmptyQuery)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPersonal
	}
	if !visibility.IsValid() {
		return nil, domain.NewCallerError("visibility", fmt.Errorf("unknown visibility %q", visibility))
	}
	if visibility == domain.VisibilityOrganization {
		if req.OrganizationID == "" {
			return nil, domain.NewCallerError("organization_id", fmt.Errorf("required for organization visibility"))
		}
		if !caller.Superuser && !memberOf(caller, req.OrganizationID) {
			return nil, domain.ErrForbidden
		}
	}

	now := time.Now().UTC()
	m := &domain.Memory{
		ID:             uuid.NewString(),
		OwnerID:        caller.UserID,
		OrganizationID: req.OrganizationID,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Errors:         req.Errors,
		Lessons:        req.Lessons,
		Metadata:       req.Metadata,
		Visibility:     visibility,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.embeddings.AttachEmbedding(ctx, m, false)

	if err := s.store.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	return m, nil
}

// Get retrieves a memory the caller may see. Hidden memories are reported
// as not found.
func (s *memoryService) Get(ctx context.Context, caller *domain.Caller, id string) (*domain.Memory, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.NewCallerVisibility(caller).Allows(m) {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// UpdateContent patches textual fields and refreshes the embedding
func (s *memoryService) UpdateContent(ctx context.Context, caller *domain.Caller, id string, req domain.UpdateMemoryRequest) (*domain.Memory, error) {
	m, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	changed := false
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&m.Content, req.Content},
		{&m.Errors, req.Errors},
		{&m.Lessons, req.Lessons},
	} {
		if f.src != nil && *f.src != *f.dst {
			*f.dst = *f.src
			changed = true
		}
	}
	if req.Metadata != nil {
		m.Metadata = req.Metadata
		changed = true
	}
	if strings.TrimSpace(m.Content) == "" {
		return nil, domain.NewCallerError("content", domain.ErrEmptyQuery)
	}
	if !changed {
		return m, nil
	}

	s.embeddings.AttachEmbedding(ctx, m, true)
	m.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save memory: %w", err)
	}
	return m, nil
}

// AdjustFeedback applies an upvote or downvote. Any authenticated caller
// who can see the memory may adjust it.
func (s *memoryService) AdjustFeedback(ctx context.Context, caller *domain.Caller, id string, req domain.FeedbackRequest) (*domain.Memory, error) {
	if caller.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	score, err := s.store.AdjustFeedback(ctx, id, req.Delta)
	if err != nil {
		return nil, fmt.Errorf("adjust feedback: %w", err)
	}
	m.FeedbackScore = score
	s.logger.Debug("feedback adjusted", "memory_id", id, "delta", req.Delta, "score", score)
	return m, nil
}

// Archive hides a memory from default searches
func (s *memoryService) Archive(ctx context.Context, caller *domain.Caller, id string) error {
	m, err := s.owned(ctx, caller, id)
	if err != nil {
		return err
	}
	if m.IsArchived() {
		return nil
	}
	return s.store.Archive(ctx, id, time.Now().UTC())
}

// owned loads a memory the caller may modify
func (s *memoryService) owned(ctx context.Context, caller *domain.Caller, id string) (*domain.Memory, error) {
	if caller.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	m, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !caller.Superuser && m.OwnerID != caller.UserID {
		return nil, domain.ErrForbidden
	}
	return m, nil
}

func memberOf(caller *domain.Caller, orgID string) bool {
	for _, id := range caller.OrganizationIDs {
		if id == orgID {
			return true
		}
	}
	return false
}
