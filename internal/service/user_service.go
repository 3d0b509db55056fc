package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gmpportal/internal/access"
	"gmpportal/internal/events"
	"gmpportal/internal/ids"
	"gmpportal/internal/models"
	"gmpportal/internal/repository"
)

// UserService backs the ADMIN user administration routes and the
// authenticated dashboard/audit routes.
type UserService struct {
	users  repository.UserStore
	audit  repository.AuditStore
	events events.Publisher
	log    zerolog.Logger
}

func NewUserService(users repository.UserStore, audit repository.AuditStore, publisher events.Publisher, log zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		audit:  audit,
		events: publisher,
		log:    log.With().Str("component", "users").Logger(),
	}
}

type UserPage struct {
	Users  []models.Public `json:"users"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func (s *UserService) List(ctx context.Context, filter repository.ListFilter) (UserPage, error) {
	filter = filter.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}
	page := UserPage{Users: make([]models.Public, 0, len(users)), Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for _, u := range users {
		page.Users = append(page.Users, u.Sanitize())
	}
	return page, nil
}

func (s *UserService) Get(ctx context.Context, id string) (models.Public, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.Public{}, err
	}
	return u.Sanitize(), nil
}

func (s *UserService) Stats(ctx context.Context) (models.UserStats, error) {
	return s.users.Stats(ctx)
}

func (s *UserService) ChangeRole(ctx context.Context, actor access.Principal, id, role string, requestID string) (models.Public, error) {
	parsed, err := models.ParseRole(role)
	if err != nil {
		return models.Public{}, invalidInput(err)
	}
	if actor.UserID == id && parsed != actor.Role {
		return models.Public{}, invalidInput(errors.New("administrators cannot change their own role"))
	}
	if err := s.users.UpdateRole(ctx, id, parsed); err != nil {
		return models.Public{}, err
	}
	s.publish(ctx, models.EventRoleChange, id, requestID, map[string]string{"role": string(parsed), "by": actor.UserID})
	s.log.Info().Str("user_id", id).Str("role", string(parsed)).Str("by", actor.UserID).Msg("role changed")
	return s.Get(ctx, id)
}

func (s *UserService) ChangeStatus(ctx context.Context, actor access.Principal, id, status string) (models.Public, error) {
	parsed, err := models.ParseUserStatus(status)
	if err != nil {
		return models.Public{}, invalidInput(err)
	}
	if actor.UserID == id && parsed == models.UserStatusInactive {
		return models.Public{}, invalidInput(errors.New("administrators cannot deactivate themselves"))
	}
	if err := s.users.UpdateStatus(ctx, id, parsed); err != nil {
		return models.Public{}, err
	}
	return s.Get(ctx, id)
}

// Delete removes a user without dependent records. repository.ErrUserReferenced
// is returned unchanged so the caller can report the conflict.
func (s *UserService) Delete(ctx context.Context, actor access.Principal, id string, requestID string) error {
	if actor.UserID == id {
		return invalidInput(errors.New("administrators cannot delete themselves"))
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, models.EventUserDelete, id, requestID, map[string]string{"by": actor.UserID})
	s.log.Info().Str("user_id", id).Str("by", actor.UserID).Msg("user deleted")
	return nil
}

type Dashboard struct {
	User         models.Public       `json:"user"`
	Capabilities []models.Capability `json:"capabilities"`
	Activity     []ActivityItem      `json:"activity"`
}

type ActivityItem struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *UserService) Dashboard(ctx context.Context, p access.Principal) (Dashboard, error) {
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return Dashboard{}, err
	}
	entries, err := s.audit.ListByUser(ctx, p.UserID, 10)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list activity: %w", err)
	}
	d := Dashboard{
		User:         u.Sanitize(),
		Capabilities: u.Role.Grants(),
		Activity:     make([]ActivityItem, 0, len(entries)),
	}
	for _, e := range entries {
		d.Activity = append(d.Activity, ActivityItem{ID: e.ID, Action: e.Action, CreatedAt: e.CreatedAt})
	}
	return d, nil
}

// RecordAudit stores a client-reported action for the caller.
func (s *UserService) RecordAudit(ctx context.Context, p access.Principal, action, requestID string) (models.AuditEntry, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "UNKNOWN"
	}
	if len(action) > 64 {
		return models.AuditEntry{}, invalidInput(errors.New("action must be at most 64 characters"))
	}
	entry := models.AuditEntry{
		ID:        ids.WithPrefix("aud"),
		UserID:    p.UserID,
		Action:    action,
		Metadata:  map[string]string{"source": "client"},
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		return models.AuditEntry{}, fmt.Errorf("record audit: %w", err)
	}
	return entry, nil
}

func (s *UserService) publish(ctx context.Context, eventType, userID, requestID string, md map[string]string) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events.New(eventType, userID, requestID, md)); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("publish event")
	}
}
