package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gmpportal/internal/models"
)

type jwtClaims struct {
	Role  string         `json:"role"`
	Email string         `json:"email,omitempty"`
	Name  string         `json:"name,omitempty"`
	Extra map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// JWTIssuer issues stateless HS256 tokens. Revocation is optional and only
// consulted when a Revocations store is configured.
type JWTIssuer struct {
	key         *SigningKey
	issuer      string
	ttl         time.Duration
	now         Clock
	revocations Revocations
}

type JWTOption func(*JWTIssuer)

func WithClock(now Clock) JWTOption {
	return func(i *JWTIssuer) { i.now = now }
}

func WithRevocations(r Revocations) JWTOption {
	return func(i *JWTIssuer) { i.revocations = r }
}

func NewJWTIssuer(key *SigningKey, issuer string, ttl time.Duration, opts ...JWTOption) *JWTIssuer {
	i := &JWTIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *JWTIssuer) Issue(ctx context.Context, req IssueRequest) (Token, error) {
	if req.UserID == "" || !req.Role.Valid() {
		return Token{}, errors.New("issue token: subject and a known role are required")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = i.ttl
	}

	now := i.now()
	id := uuid.NewString()
	claims := jwtClaims{
		Role:  string(req.Role),
		Email: req.Email,
		Name:  req.Name,
		Extra: req.Extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   req.UserID,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	var signed string
	err := i.key.With(func(key []byte) error {
		var err error
		signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		return err
	})
	if err != nil {
		return Token{}, fmt.Errorf("sign jwt: %w", err)
	}
	return Token{Raw: signed, ID: id, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (i *JWTIssuer) Verify(ctx context.Context, raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}

	parsed := &jwtClaims{}
	err := i.key.With(func(key []byte) error {
		_, err := jwt.ParseWithClaims(raw, parsed, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(i.issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(i.now),
		)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrTokenSignature
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if expired(i.now(), parsed.ExpiresAt.Time) {
		return Claims{}, ErrTokenExpired
	}
	role, err := models.ParseRole(parsed.Role)
	if err != nil || parsed.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}

	if i.revocations != nil && parsed.ID != "" {
		revoked, err := i.revocations.IsRevoked(ctx, parsed.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrTokenRevoked
		}
	}

	claims := Claims{
		raw:       raw,
		ID:        parsed.ID,
		UserID:    parsed.Subject,
		Role:      role,
		Email:     parsed.Email,
		Name:      parsed.Name,
		Extra:     parsed.Extra,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, nil
}

// Revoke records the token id until its natural expiry. Without a
// Revocations store logout is client-side only.
func (i *JWTIssuer) Revoke(ctx context.Context, claims Claims) error {
	if i.revocations == nil || claims.ID == "" {
		return nil
	}
	return i.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt)
}
