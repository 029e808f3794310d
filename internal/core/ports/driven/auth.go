package driven

import "github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"

// TokenParser resolves a bearer token into the caller it identifies
type TokenParser interface {
	// ParseToken validates the token and returns its caller.
	// Returns domain.ErrTokenExpired or domain.ErrTokenInvalid on failure.
	ParseToken(token string) (*domain.Caller, error)

	// GenerateToken issues a token for a caller
	GenerateToken(caller *domain.Caller) (string, error)
}
