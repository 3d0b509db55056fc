package security

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gmpportal/internal/cache"
	"gmpportal/internal/ids"
	"gmpportal/internal/models"
	"gmpportal/internal/repository"
)

// SessionIssuer hands out opaque tokens backed by user_sessions rows. The
// role is read from the user row on every cache miss, so role changes take
// effect once the cached entry lapses.
type SessionIssuer struct {
	sessions repository.SessionStore
	users    repository.UserStore
	cache    *cache.Local
	cacheTTL time.Duration
	ttl      time.Duration
	now      Clock
	logger   zerolog.Logger
}

type SessionIssuerConfig struct {
	TTL      time.Duration
	CacheTTL time.Duration
	Clock    Clock
}

func NewSessionIssuer(sessions repository.SessionStore, users repository.UserStore, local *cache.Local, cfg SessionIssuerConfig, logger zerolog.Logger) *SessionIssuer {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	if local != nil {
		local.SetClock(now)
	}
	return &SessionIssuer{
		sessions: sessions,
		users:    users,
		cache:    local,
		cacheTTL: cfg.CacheTTL,
		ttl:      cfg.TTL,
		now:      now,
		logger:   logger.With().Str("component", "session_issuer").Logger(),
	}
}

type cachedSession struct {
	ID        string      `json:"id"`
	UserID    string      `json:"uid"`
	Role      models.Role `json:"role"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	IssuedAt  time.Time   `json:"iat"`
	ExpiresAt time.Time   `json:"exp"`
}

func (i *SessionIssuer) Issue(ctx context.Context, req IssueRequest) (Token, error) {
	if req.UserID == "" || !req.Role.Valid() {
		return Token{}, errors.New("issue session: subject and a known role are required")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = i.ttl
	}
	now := i.now()

	// Expired rows for this user are pruned before the insert. A concurrent
	// login may leave one behind; Verify ignores it and the purge job removes it.
	if n, err := i.sessions.DeleteExpiredForUser(ctx, req.UserID, now); err != nil {
		i.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("prune expired sessions")
	} else if n > 0 {
		i.logger.Debug().Int64("pruned", n).Str("user_id", req.UserID).Msg("pruned expired sessions")
	}

	raw, hash, err := newOpaqueToken(32)
	if err != nil {
		return Token{}, err
	}
	session := models.Session{
		ID:        ids.WithPrefix("ses"),
		UserID:    req.UserID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := i.sessions.Create(ctx, session); err != nil {
		return Token{}, fmt.Errorf("create session: %w", err)
	}
	return Token{Raw: raw, ID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

func (i *SessionIssuer) Verify(ctx context.Context, raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}
	hash := HashToken(raw)
	key := hex.EncodeToString(hash)
	now := i.now()

	if i.cache != nil {
		if buf, err := i.cache.Get(key); err == nil {
			var entry cachedSession
			if err := json.Unmarshal(buf, &entry); err == nil {
				if expired(now, entry.ExpiresAt) {
					i.cache.Delete(key)
					return Claims{}, ErrTokenExpired
				}
				return entry.claims(raw), nil
			}
		}
	}

	session, err := i.sessions.FindByTokenHash(ctx, hash)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return Claims{}, ErrInvalidToken
	}
	if err != nil {
		return Claims{}, fmt.Errorf("lookup session: %w", err)
	}
	if expired(now, session.ExpiresAt) {
		return Claims{}, ErrTokenExpired
	}

	user, err := i.users.GetByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return Claims{}, ErrInvalidToken
	}
	if err != nil {
		return Claims{}, fmt.Errorf("lookup session user: %w", err)
	}
	if user.Status == models.UserStatusInactive {
		return Claims{}, ErrInvalidToken
	}

	entry := cachedSession{
		ID:        session.ID,
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		Name:      user.Name,
		IssuedAt:  session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	if i.cache != nil {
		deadline := now.Add(i.cacheTTL)
		if session.ExpiresAt.Before(deadline) {
			deadline = session.ExpiresAt
		}
		if buf, err := json.Marshal(entry); err == nil {
			if err := i.cache.Set(key, buf, deadline); err != nil {
				i.logger.Debug().Err(err).Msg("cache session")
			}
		}
	}
	return entry.claims(raw), nil
}

// Revoke deletes the session row and its cached verification.
func (i *SessionIssuer) Revoke(ctx context.Context, claims Claims) error {
	if i.cache != nil && claims.raw != "" {
		i.cache.Delete(hex.EncodeToString(HashToken(claims.raw)))
	}
	err := i.sessions.DeleteByID(ctx, claims.ID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (e cachedSession) claims(raw string) Claims {
	return Claims{
		raw:       raw,
		ID:        e.ID,
		UserID:    e.UserID,
		Role:      e.Role,
		Email:     e.Email,
		Name:      e.Name,
		IssuedAt:  e.IssuedAt,
		ExpiresAt: e.ExpiresAt,
	}
}
