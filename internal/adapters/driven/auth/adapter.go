package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/domain"
	"github.com/hindsight-ai/hindsight-ai-sub001/internal/core/ports/driven"
)

// Ensure Adapter implements TokenParser
var _ driven.TokenParser = (*Adapter)(nil)

// DefaultTokenTTL is the lifetime of issued tokens
const DefaultTokenTTL = 24 * time.Hour

// jwtClaims wraps domain.Caller for JWT compatibility
type jwtClaims struct {
	Email           string   `json:"email,omitempty"`
	OrganizationIDs []string `json:"orgs,omitempty"`
	Superuser       bool     `json:"su,omitempty"`
	jwt.RegisteredClaims
}

// Adapter signs and verifies HS256 bearer tokens that identify a caller
type Adapter struct {
	jwtSecret []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

// NewAdapter creates a new auth adapter with the given JWT secret
func NewAdapter(jwtSecret string) *Adapter {
	return NewAdapterWithTTL(jwtSecret, DefaultTokenTTL)
}

// NewAdapterWithTTL creates a new auth adapter issuing tokens valid for ttl
func NewAdapterWithTTL(jwtSecret string, ttl time.Duration) *Adapter {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Adapter{
		jwtSecret: []byte(jwtSecret),
		issuer:    "hindsight",
		ttl:       ttl,
		now:       time.Now,
	}
}

// GenerateToken creates a signed JWT for a caller
func (a *Adapter) GenerateToken(caller *domain.Caller) (string, error) {
	if caller.IsAnonymous() {
		return "", fmt.Errorf("%w: caller has no user id", domain.ErrInvalidInput)
	}

	now := a.now()
	jc := jwtClaims{
		Email:           caller.Email,
		OrganizationIDs: caller.OrganizationIDs,
		Superuser:       caller.Superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jc)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and returns the caller it identifies
func (a *Adapter) ParseToken(tokenString string) (*domain.Caller, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithTimeFunc(a.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.Caller{
		UserID:          claims.Subject,
		Email:           claims.Email,
		OrganizationIDs: claims.OrganizationIDs,
		Superuser:       claims.Superuser,
	}, nil
}
