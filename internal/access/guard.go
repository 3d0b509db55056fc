// Package access is the Access Guard: every privileged operation passes a
// bearer token and a required capability through Authorize before running.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gmpportal/internal/models"
	"gmpportal/internal/security"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMissingToken    = fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	ErrForbidden       = errors.New("forbidden")
)

// Verifier is the part of security.Issuer the guard depends on.
type Verifier interface {
	Verify(ctx context.Context, raw string) (security.Claims, error)
}

// Principal is the verified caller attached to a request.
type Principal struct {
	UserID    string
	Role      models.Role
	Email     string
	Name      string
	TokenID   string
	ExpiresAt time.Time

	Claims security.Claims
}

func (p Principal) Can(c models.Capability) bool {
	return p.Role.Can(c)
}

type Guard struct {
	verifier Verifier
}

func NewGuard(v Verifier) *Guard {
	return &Guard{verifier: v}
}

// Authenticate validates the Authorization header value. Invalid, expired
// and revoked tokens all yield ErrUnauthenticated; any other error is a
// storage failure and is returned unchanged.
func (g *Guard) Authenticate(ctx context.Context, authHeader string) (Principal, error) {
	raw, ok := ExtractBearerToken(authHeader)
	if !ok {
		return Principal{}, ErrMissingToken
	}
	claims, err := g.verifier.Verify(ctx, raw)
	if errors.Is(err, security.ErrInvalidToken) {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID:    claims.UserID,
		Role:      claims.Role,
		Email:     claims.Email,
		Name:      claims.Name,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt,
		Claims:    claims,
	}, nil
}

// Authorize authenticates and then checks that the caller's role holds
// required. It has no side effects; repeated calls with the same input give
// the same answer until the token expires.
func (g *Guard) Authorize(ctx context.Context, authHeader string, required models.Capability) (Principal, error) {
	p, err := g.Authenticate(ctx, authHeader)
	if err != nil {
		return Principal{}, err
	}
	if err := Check(p, required); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Check reports ErrForbidden when p's role lacks required.
func Check(p Principal, required models.Capability) error {
	if !p.Can(required) {
		return fmt.Errorf("%w: role %s lacks %s", ErrForbidden, p.Role, required)
	}
	return nil
}

func ExtractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
