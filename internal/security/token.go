package security

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gmpportal/internal/models"
)

// ErrInvalidToken covers every token rejection. ErrTokenExpired and
// ErrTokenSignature wrap it so callers can treat them identically.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenSignature = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	ErrTokenRevoked   = fmt.Errorf("%w: revoked", ErrInvalidToken)
)

type Clock func() time.Time

type IssueRequest struct {
	UserID string
	Role   models.Role
	Email  string
	Name   string
	Extra  map[string]any
	// TTL overrides the issuer default when positive.
	TTL time.Duration
}

type Token struct {
	Raw       string    `json:"token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Claims struct {
	ID        string
	UserID    string
	Role      models.Role
	Email     string
	Name      string
	Extra     map[string]any
	IssuedAt  time.Time
	ExpiresAt time.Time

	raw string
}

// Issuer creates and validates bearer tokens. Implementations differ only
// in where the token state lives.
type Issuer interface {
	Issue(ctx context.Context, req IssueRequest) (Token, error)
	Verify(ctx context.Context, raw string) (Claims, error)
	Revoke(ctx context.Context, claims Claims) error
}

// expired reports whether exp has been reached; now == exp counts as expired.
func expired(now, exp time.Time) bool {
	return !now.Before(exp)
}

func newOpaqueToken(length int) (string, []byte, error) {
	if length <= 0 {
		length = 32
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, HashToken(token), nil
}

func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
