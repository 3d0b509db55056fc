package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gmpportal/internal/access"
	"gmpportal/internal/events"
	"gmpportal/internal/ids"
	"gmpportal/internal/metrics"
	"gmpportal/internal/models"
	"gmpportal/internal/repository"
	"gmpportal/internal/security"
)

const (
	RedirectAdmin   = "/admin/index.html"
	RedirectStudent = "/student/index.html"
)

type AuthService struct {
	users   repository.UserStore
	issuer  security.Issuer
	hasher  *security.PasswordHasher
	policy  security.PasswordPolicy
	events  events.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(
	users repository.UserStore,
	issuer security.Issuer,
	hasher *security.PasswordHasher,
	policy security.PasswordPolicy,
	publisher events.Publisher,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		issuer:  issuer,
		hasher:  hasher,
		policy:  policy,
		events:  publisher,
		metrics: m,
		now:     time.Now,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// SetClock replaces the clock used for last-login timestamps.
func (s *AuthService) SetClock(now func() time.Time) { s.now = now }

// RequestMeta describes the HTTP request behind a use case. RoleHeader is the
// client-reported X-User-Role and is only ever logged.
type RequestMeta struct {
	RequestID  string
	ClientIP   string
	UserAgent  string
	RoleHeader string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User      models.Public
	Token     string
	ExpiresAt time.Time
	Redirect  string
}

func RedirectFor(role models.Role) string {
	if role == models.RoleAdmin {
		return RedirectAdmin
	}
	return RedirectStudent
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput, meta RequestMeta) (AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	email := security.NormalizeEmail(input.Email)
	if input.Name == "" || email == "" || input.Password == "" {
		return AuthResult{}, invalidInput(errors.New("name, email and password are required"))
	}
	if err := security.ValidateEmail(email); err != nil {
		return AuthResult{}, invalidInput(err)
	}
	if err := s.policy.Validate(input.Password); err != nil {
		return AuthResult{}, invalidInput(err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if errors.Is(err, security.ErrWeakPassword) {
		return AuthResult{}, invalidInput(err)
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           ids.WithPrefix("usr"),
		Name:         input.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		Status:       models.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			s.metrics.AuthEvent(models.EventRegister, "duplicate")
			return AuthResult{}, ErrDuplicateEmail
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	created, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("reload user: %w", err)
	}

	result, err := s.issue(ctx, created)
	if err != nil {
		return AuthResult{}, err
	}

	s.metrics.AuthEvent(models.EventRegister, "success")
	s.publish(ctx, models.EventRegister, created.ID, meta, nil)
	s.log.Info().Str("user_id", created.ID).Str("request_id", meta.RequestID).Msg("user registered")
	return result, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput, meta RequestMeta) (AuthResult, error) {
	email := security.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return AuthResult{}, invalidInput(errors.New("email and password are required"))
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Spend the same hashing work as a real check.
		_, _ = s.hasher.Verify(input.Password, s.dummy())
		return AuthResult{}, s.loginFailed(ctx, "", email, meta)
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unusable")
	}
	if !ok || err != nil {
		return AuthResult{}, s.loginFailed(ctx, user.ID, email, meta)
	}
	if user.Status == models.UserStatusInactive {
		return AuthResult{}, s.loginFailed(ctx, user.ID, email, meta)
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return AuthResult{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	result, err := s.issue(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	s.metrics.AuthEvent(models.EventLogin, "success")
	s.publish(ctx, models.EventLogin, user.ID, meta, nil)
	return result, nil
}

func (s *AuthService) Logout(ctx context.Context, p access.Principal, meta RequestMeta) error {
	if err := s.issuer.Revoke(ctx, p.Claims); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.metrics.AuthEvent(models.EventLogout, "success")
	s.publish(ctx, models.EventLogout, p.UserID, meta, nil)
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (models.Public, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.Public{}, err
	}
	return user.Sanitize(), nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID, name string) (models.Public, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Public{}, invalidInput(errors.New("name is required"))
	}
	if len(name) > 120 {
		return models.Public{}, invalidInput(errors.New("name must be at most 120 characters"))
	}
	if err := s.users.UpdateProfile(ctx, userID, name); err != nil {
		return models.Public{}, err
	}
	return s.Me(ctx, userID)
}

func (s *AuthService) issue(ctx context.Context, user models.User) (AuthResult, error) {
	tok, err := s.issuer.Issue(ctx, security.IssueRequest{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{
		User:      user.Sanitize(),
		Token:     tok.Raw,
		ExpiresAt: tok.ExpiresAt,
		Redirect:  RedirectFor(user.Role),
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email string, meta RequestMeta) error {
	domain := email
	if at := strings.LastIndexByte(email, '@'); at >= 0 {
		domain = email[at+1:]
	}
	s.log.Warn().
		Str("email_domain", domain).
		Str("client_ip", meta.ClientIP).
		Str("request_id", meta.RequestID).
		Msg("login failed")
	s.metrics.AuthEvent(models.EventLogin, "failure")
	s.publish(ctx, models.EventLoginFailed, userID, meta, map[string]string{"emailDomain": domain})
	return ErrInvalidCredentials
}

func (s *AuthService) publish(ctx context.Context, eventType, userID string, meta RequestMeta, extra map[string]string) {
	if s.events == nil {
		return
	}
	md := map[string]string{}
	if meta.ClientIP != "" {
		md["ip"] = meta.ClientIP
	}
	if meta.UserAgent != "" {
		md["userAgent"] = meta.UserAgent
	}
	for k, v := range extra {
		md[k] = v
	}
	if err := s.events.Publish(ctx, events.New(eventType, userID, meta.RequestID, md)); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("publish auth event")
	}
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("gmp-dummy-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
