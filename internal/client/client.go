// Package client talks to the portal API on behalf of gmpctl and keeps the
// Session Tracker in step with what the server answers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gmpportal/internal/client/session"
)

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	tracker *session.Tracker
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func New(baseURL string, tracker *session.Tracker, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tracker: tracker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type authResponse struct {
	User     session.User `json:"user"`
	Token    string       `json:"token"`
	Redirect string       `json:"redirect"`
}

type Validation struct {
	Valid        bool      `json:"valid"`
	UserID       string    `json:"userId"`
	Role         string    `json:"role"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Capabilities []string  `json:"capabilities"`
}

func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp, false); err != nil {
		return session.Session{}, err
	}
	return c.tracker.Start(resp.User, resp.Token)
}

func (c *Client) Register(ctx context.Context, name, email, password string) (session.Session, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &resp, false); err != nil {
		return session.Session{}, err
	}
	return c.tracker.Start(resp.User, resp.Token)
}

func (c *Client) Me(ctx context.Context) (session.User, error) {
	var resp struct {
		User session.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp, true); err != nil {
		return session.User{}, err
	}
	return resp.User, nil
}

// Validate asks the server whether the cached token is still accepted.
func (c *Client) Validate(ctx context.Context) (Validation, error) {
	var v Validation
	err := c.do(ctx, http.MethodGet, "/api/security/validate", nil, &v, true)
	return v, err
}

// Logout revokes the token server-side when possible and always clears the
// local session.
func (c *Client) Logout(ctx context.Context) error {
	remoteErr := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, true)
	if err := c.tracker.Logout(); err != nil {
		return err
	}
	if errors.Is(remoteErr, session.ErrNoSession) || errors.Is(remoteErr, session.ErrExpired) || errors.Is(remoteErr, ErrUnauthorized) {
		return nil
	}
	return remoteErr
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if authed {
		s, err := c.tracker.Touch()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+s.Token)
		req.Header.Set("X-User-Role", s.User.Role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && authed {
		_ = c.tracker.Logout()
		return ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
