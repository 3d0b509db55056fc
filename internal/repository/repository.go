// Package repository holds the storage contracts of the Credential Store and
// their Postgres implementations. The sqlite subpackage satisfies the same
// contracts against a local database file.
package repository

import (
	"context"
	"errors"
	"time"

	"gmpportal/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrUserReferenced  = errors.New("user has dependent records")
	ErrSessionNotFound = errors.New("session not found")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type ListFilter struct {
	Limit  int
	Offset int
	Search string
	Role   models.Role
}

// Normalize clamps paging values to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter ListFilter) ([]models.User, int, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	UpdateProfile(ctx context.Context, id string, name string) error
	CountDependents(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (models.UserStats, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	FindByTokenHash(ctx context.Context, hash []byte) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteExpiredForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditStore interface {
	Insert(ctx context.Context, entry models.AuditEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)
}

// NewStats returns an empty stats value with initialised maps.
func NewStats() models.UserStats {
	return models.UserStats{
		ByRole:   make(map[models.Role]int),
		ByStatus: make(map[models.UserStatus]int),
	}
}
