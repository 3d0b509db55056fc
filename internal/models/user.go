package models

import (
	"fmt"
	"strings"
	"time"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE"
	UserStatusCompleted UserStatus = "COMPLETED"
)

func ParseUserStatus(s string) (UserStatus, error) {
	switch status := UserStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case UserStatusActive, UserStatusInactive, UserStatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("unknown user status %q", s)
	}
}

type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  []byte
	Role          Role
	EmailVerified bool
	Status        UserStatus
	LastLogin     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Public is the user as it may leave the Credential Store: no password hash.
type Public struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          Role       `json:"role"`
	EmailVerified bool       `json:"isEmailVerified"`
	Status        UserStatus `json:"status"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (u User) Sanitize() Public {
	return Public{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		Status:        u.Status,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
	}
}

// Session is a persisted opaque-token row, used when tokens are not
// self-contained.
type Session struct {
	ID        string
	UserID    string
	TokenHash []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

type UserStats struct {
	Total    int                `json:"total"`
	ByRole   map[Role]int       `json:"byRole"`
	ByStatus map[UserStatus]int `json:"byStatus"`
	Verified int                `json:"verified"`
}
