package security_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmpportal/internal/cache"
	"gmpportal/internal/config"
	"gmpportal/internal/database"
	"gmpportal/internal/models"
	"gmpportal/internal/repository"
	"gmpportal/internal/repository/sqlite"
	"gmpportal/internal/security"
)

type sessionFixture struct {
	issuer   *security.SessionIssuer
	sessions *sqlite.Sessions
	users    *sqlite.Users
	now      time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, config.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	local, err := cache.NewLocal(time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	f := &sessionFixture{
		sessions: sqlite.NewSessions(db),
		users:    sqlite.NewUsers(db),
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.issuer = security.NewSessionIssuer(f.sessions, f.users, local, security.SessionIssuerConfig{
		TTL:      7 * 24 * time.Hour,
		CacheTTL: time.Minute,
		Clock:    func() time.Time { return f.now },
	}, zerolog.Nop())

	require.NoError(t, f.users.Create(ctx, models.User{
		ID: "usr_1", Name: "Ana", Email: "ana@example.com",
		PasswordHash: []byte("x"), Role: models.RoleStudent, Status: models.UserStatusActive,
	}))
	return f
}

func TestSessionIssuerRoundTrip(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	tok, err := f.issuer.Issue(ctx, security.IssueRequest{UserID: "usr_1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.True(t, f.now.Add(7*24*time.Hour).Equal(tok.ExpiresAt))

	claims, err := f.issuer.Verify(ctx, tok.Raw)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, tok.ID, claims.ID)

	// second verification is served from the cache
	again, err := f.issuer.Verify(ctx, tok.Raw)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, again.ID)

	_, err = f.issuer.Verify(ctx, "unknown-token")
	assert.ErrorIs(t, err, security.ErrInvalidToken)
}

func TestSessionIssuerExpiryBoundary(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	tok, err := f.issuer.Issue(ctx, security.IssueRequest{UserID: "usr_1", Role: models.RoleStudent, TTL: time.Hour})
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	_, err = f.issuer.Verify(ctx, tok.Raw)
	assert.ErrorIs(t, err, security.ErrTokenExpired)
}

func TestSessionIssuerPrunesExpiredRowsOnIssue(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	old, err := f.issuer.Issue(ctx, security.IssueRequest{UserID: "usr_1", Role: models.RoleStudent, TTL: time.Minute})
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)
	_, err = f.issuer.Issue(ctx, security.IssueRequest{UserID: "usr_1", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = f.sessions.FindByTokenHash(ctx, security.HashToken(old.Raw))
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSessionIssuerRevoke(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	tok, err := f.issuer.Issue(ctx, security.IssueRequest{UserID: "usr_1", Role: models.RoleStudent})
	require.NoError(t, err)
	claims, err := f.issuer.Verify(ctx, tok.Raw)
	require.NoError(t, err)

	require.NoError(t, f.issuer.Revoke(ctx, claims))
	_, err = f.issuer.Verify(ctx, tok.Raw)
	assert.ErrorIs(t, err, security.ErrInvalidToken)

	require.NoError(t, f.issuer.Revoke(ctx, claims), "revoking twice is harmless")
}

func TestSessionIssuerReflectsRoleChanges(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	tok, err := f.issuer.Issue(ctx, security.IssueRequest{UserID: "usr_1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.NoError(t, f.users.UpdateRole(ctx, "usr_1", models.RoleManager))

	claims, err := f.issuer.Verify(ctx, tok.Raw)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, claims.Role)
}

func TestSessionIssuerRejectsDeactivatedUser(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	tok, err := f.issuer.Issue(ctx, security.IssueRequest{UserID: "usr_1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.NoError(t, f.users.UpdateStatus(ctx, "usr_1", models.UserStatusInactive))

	_, err = f.issuer.Verify(ctx, tok.Raw)
	assert.ErrorIs(t, err, security.ErrInvalidToken)

	require.NoError(t, f.users.UpdateStatus(ctx, "usr_1", models.UserStatusCompleted))
	_, err = f.issuer.Verify(ctx, tok.Raw)
	require.NoError(t, err)
}
