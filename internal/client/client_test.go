package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmpportal/internal/client/session"
)

func fakeServer(t *testing.T, meStatus int) (*httptest.Server, *http.Header) {
	t.Helper()
	seen := &http.Header{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "Passw0rd!" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid email or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"usr_1","name":"Ana","email":"ana@example.com","role":"STUDENT"},"token":"tok-1","redirect":"/student/index.html"}`))
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		*seen = r.Header.Clone()
		w.WriteHeader(meStatus)
		if meStatus == http.StatusOK {
			_, _ = w.Write([]byte(`{"user":{"id":"usr_1","role":"STUDENT"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestLoginCachesSessionAndSendsHeaders(t *testing.T) {
	srv, seen := fakeServer(t, http.StatusOK)
	tracker := session.NewTracker(session.NewMemoryStorage())
	c := New(srv.URL, tracker)
	ctx := context.Background()

	s, err := c.Login(ctx, "ana@example.com", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, "STUDENT", s.User.Role)

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", u.ID)
	assert.Equal(t, "Bearer tok-1", seen.Get("Authorization"))
	assert.Equal(t, "STUDENT", seen.Get("X-User-Role"))

	require.NoError(t, c.Logout(ctx))
	_, err = tracker.Current()
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestBadCredentials(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK)
	tracker := session.NewTracker(session.NewMemoryStorage())

	_, err := New(srv.URL, tracker).Login(context.Background(), "ana@example.com", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid email or password", apiErr.Message)

	_, err = tracker.Current()
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestUnauthorizedEndsSession(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusUnauthorized)
	tracker := session.NewTracker(session.NewMemoryStorage())
	c := New(srv.URL, tracker)

	_, err := c.Login(context.Background(), "ana@example.com", "Passw0rd!")
	require.NoError(t, err)

	_, err = c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = tracker.Current()
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestAuthedCallWithoutSession(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK)
	_, err := New(srv.URL, session.NewTracker(session.NewMemoryStorage())).Me(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}
