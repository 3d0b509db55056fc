package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portal(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":"usr_1","name":"Root","email":"root@example.com","role":"ADMIN"},"token":"tok-1","redirect":"/admin/index.html"}`))
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"usr_1","name":"Root","email":"root@example.com","role":"ADMIN"}}`))
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, server, store, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--server", server, "--store", store}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginWhoamiStatusLogout(t *testing.T) {
	srv := portal(t)
	store := filepath.Join(t.TempDir(), "session.db")

	out, err := run(t, srv.URL, store, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "unauthenticated")

	out, err = run(t, srv.URL, store, "Passw0rd!\n", "login", "--email", "root@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as root@example.com (ADMIN)")

	out, err = run(t, srv.URL, store, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Root <root@example.com> ADMIN")

	out, err = run(t, srv.URL, store, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "authenticated as root@example.com")
	assert.Contains(t, out, "admin views available")

	out, err = run(t, srv.URL, store, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")

	_, err = run(t, srv.URL, store, "", "whoami")
	assert.EqualError(t, err, "not logged in")
}

func TestLoginNeedsPassword(t *testing.T) {
	srv := portal(t)
	_, err := run(t, srv.URL, filepath.Join(t.TempDir(), "s.db"), "", "login", "--email", "a@example.com")
	assert.Error(t, err)
}
