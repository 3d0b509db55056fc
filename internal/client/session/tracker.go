// Package session is the client-side session cache. It only decides what the
// client shows; the server re-validates the token on every request.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gmpportal/internal/ids"
)

const (
	DefaultIdle          = 30 * time.Minute
	DefaultCheckInterval = time.Minute
)

var ErrExpired = errors.New("session expired")

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Session struct {
	User         User      `json:"user"`
	Token        string    `json:"token"`
	SessionID    string    `json:"sessionId"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// IsAdmin reports whether admin views may be shown. It is advisory only.
func (s Session) IsAdmin() bool { return strings.EqualFold(s.User.Role, "ADMIN") }

type Option func(*Tracker)

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// WithIdle sets the sliding window. Non-positive values keep the default.
func WithIdle(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.idle = d
		}
	}
}

type Tracker struct {
	mu    sync.Mutex
	store Storage
	idle  time.Duration
	now   func() time.Time
}

func NewTracker(store Storage, opts ...Option) *Tracker {
	t := &Tracker{store: store, idle: DefaultIdle, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Idle() time.Duration { return t.idle }

// Start caches a fresh login or registration.
func (t *Tracker) Start(user User, token string) (Session, error) {
	if token == "" {
		return Session{}, errors.New("start session: empty token")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	s := Session{
		User:         user,
		Token:        token,
		SessionID:    ids.WithPrefix("ses"),
		CreatedAt:    now,
		ExpiresAt:    now.Add(t.idle),
		LastActivity: now,
	}
	if err := t.save(s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Touch records user activity and slides the expiry a full window forward.
func (t *Tracker) Touch() (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.valid()
	if err != nil {
		return Session{}, err
	}
	now := t.now().UTC()
	s.LastActivity = now
	s.ExpiresAt = now.Add(t.idle)
	if err := t.save(s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Check returns the cached session, clearing it once now >= expiry.
func (t *Tracker) Check() (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valid()
}

// Current returns the cached session without judging its expiry.
func (t *Tracker) Current() (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()
}

func (t *Tracker) Logout() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Clear()
}

// Run checks the session every interval until ctx ends or the session
// expires, in which case onExpire receives the session that lapsed.
func (t *Tracker) Run(ctx context.Context, interval time.Duration, onExpire func(Session)) error {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			last, _ := t.Current()
			_, err := t.Check()
			switch {
			case err == nil:
			case errors.Is(err, ErrExpired):
				if onExpire != nil {
					onExpire(last)
				}
				return nil
			default:
				return err
			}
		}
	}
}

func (t *Tracker) valid() (Session, error) {
	s, err := t.load()
	if err != nil {
		return Session{}, err
	}
	if !t.now().Before(s.ExpiresAt) {
		if err := t.store.Clear(); err != nil {
			return Session{}, fmt.Errorf("clear expired session: %w", err)
		}
		return Session{}, ErrExpired
	}
	return s, nil
}

func (t *Tracker) load() (Session, error) {
	blob, err := t.store.Load()
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(blob, &s); err != nil || s.Token == "" || s.ExpiresAt.IsZero() {
		// Unreadable state is treated as logged out.
		_ = t.store.Clear()
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (t *Tracker) save(s Session) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := t.store.Save(blob); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
