package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Ensure MockTokenParser implements TokenParser
var _ driven.TokenParser = (*MockTokenParser)(nil)

// MockTokenParser is a mock implementation of TokenParser for testing.
// Tokens are base64-encoded JSON callers. NOT secure - only for testing.
type MockTokenParser struct{}

// NewMockTokenParser creates a new MockTokenParser
func NewMockTokenParser() *MockTokenParser {
	return &MockTokenParser{}
}

// GenerateToken encodes the caller as base64 JSON
func (m *MockTokenParser) GenerateToken(caller *domain.Caller) (string, error) {
	data, err := json.Marshal(caller)
	if err != nil {
		return "", fmt.Errorf("failed to marshal caller: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ParseToken decodes a token produced by GenerateToken
func (m *MockTokenParser) ParseToken(token string) (*domain.Caller, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	var caller domain.Caller
	if err := json.Unmarshal(data, &caller); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if caller.IsAnonymous() {
		return nil, domain.ErrTokenInvalid
	}
	return &caller, nil
}
