// Package auth resolves request principals: JWT tokens, API keys and
// configured users, plus the role based permission gate.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kailas-cloud/contentrest/internal/domain"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
)

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. An empty secret is rejected.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt lifetime must be positive, got %s", ttl)
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for p and returns it with its expiry.
func (s *TokenService) Issue(p principal.Principal) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":   p.Name,
		"roles": p.Roles,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature and expiry of raw and returns its principal.
// Every failure wraps domain.ErrUnauthorized.
func (s *TokenService) Verify(raw string) (principal.Principal, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return principal.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return principal.Principal{}, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}

	name, _ := claims["sub"].(string)
	if name == "" {
		return principal.Principal{}, fmt.Errorf("token without subject: %w", domain.ErrUnauthorized)
	}
	var roles []string
	if list, ok := claims["roles"].([]any); ok {
		for _, r := range list {
			if role, ok := r.(string); ok {
				roles = append(roles, role)
			}
		}
	}
	return principal.Principal{Name: name, Roles: roles}, nil
}
