package models

import "time"

const (
	EventRegister    = "register"
	EventLogin       = "login"
	EventLoginFailed = "login_failed"
	EventLogout      = "logout"
	EventRoleChange  = "role_change"
	EventUserDelete  = "user_delete"
)

type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Metadata  map[string]string
	RequestID string
	CreatedAt time.Time
}
