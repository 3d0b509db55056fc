package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmpportal/internal/models"
	"gmpportal/internal/security"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newIssuer(t *testing.T, now func() time.Time) *security.JWTIssuer {
	t.Helper()
	key, err := security.NewSigningKey([]byte(testSecret))
	require.NoError(t, err)
	return security.NewJWTIssuer(key, "gmp-test", time.Hour, security.WithClock(now))
}

func bearer(t *testing.T, issuer *security.JWTIssuer, role models.Role) string {
	t.Helper()
	tok, err := issuer.Issue(context.Background(), security.IssueRequest{UserID: "usr_1", Role: role})
	require.NoError(t, err)
	return "Bearer " + tok.Raw
}

func TestAuthorizeRoleGate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, func() time.Time { return now })
	guard := NewGuard(issuer)
	ctx := context.Background()

	_, err := guard.Authorize(ctx, bearer(t, issuer, models.RoleStudent), models.CapAdmin)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrUnauthenticated)

	p, err := guard.Authorize(ctx, bearer(t, issuer, models.RoleAdmin), models.CapAdmin)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", p.UserID)
	assert.Equal(t, models.RoleAdmin, p.Role)
}

func TestAuthorizeIsIdempotent(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, func() time.Time { return now })
	guard := NewGuard(issuer)
	ctx := context.Background()

	for _, tc := range []struct {
		role models.Role
		cap  models.Capability
	}{
		{models.RoleStudent, models.CapRead},
		{models.RoleStudent, models.CapWrite},
		{models.RoleManager, models.CapManageTeam},
		{models.RoleAdmin, models.CapDelete},
	} {
		header := bearer(t, issuer, tc.role)
		p1, err1 := guard.Authorize(ctx, header, tc.cap)
		p2, err2 := guard.Authorize(ctx, header, tc.cap)
		assert.Equal(t, err1 == nil, err2 == nil, "%s/%s", tc.role, tc.cap)
		assert.Equal(t, errors.Is(err1, ErrForbidden), errors.Is(err2, ErrForbidden))
		assert.Equal(t, p1.UserID, p2.UserID)
	}
}

func TestAuthorizeRejectsBadTokens(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, func() time.Time { return now })
	guard := NewGuard(issuer)
	ctx := context.Background()

	_, err := guard.Authorize(ctx, "", models.CapRead)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = guard.Authorize(ctx, "Basic abc", models.CapRead)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = guard.Authorize(ctx, "Bearer garbage", models.CapRead)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	header := bearer(t, issuer, models.RoleAdmin)
	now = now.Add(time.Hour)
	_, err = guard.Authorize(ctx, header, models.CapRead)
	assert.ErrorIs(t, err, ErrUnauthenticated, "a token expiring exactly now is rejected")
}

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, string) (security.Claims, error) {
	return security.Claims{}, errors.New("connection refused")
}

func TestAuthenticateSurfacesStorageFailure(t *testing.T) {
	_, err := NewGuard(failingVerifier{}).Authenticate(context.Background(), "Bearer x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestExtractBearerToken(t *testing.T) {
	tok, ok := ExtractBearerToken("bearer  abc ")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = ExtractBearerToken("Bearer ")
	assert.False(t, ok)
}

func TestPrincipalContext(t *testing.T) {
	ctx := ContextWithPrincipal(context.Background(), Principal{UserID: "usr_1", Role: models.RoleManager})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, models.RoleManager, p.Role)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)
}
