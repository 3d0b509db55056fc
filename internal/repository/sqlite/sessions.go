package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gmpportal/internal/models"
	"gmpportal/internal/repository"
)

type Sessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db}
}

var _ repository.SessionStore = (*Sessions)(nil)

func (s *Sessions) Create(ctx context.Context, session models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_sessions (id, user_id, token_hash, created_at, expires_at)
		values (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.TokenHash, session.CreatedAt.UTC(), session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Sessions) FindByTokenHash(ctx context.Context, hash []byte) (models.Session, error) {
	var session models.Session
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, created_at, expires_at
		from user_sessions where token_hash = ?`, hash).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, repository.ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

func (s *Sessions) DeleteByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from user_sessions where id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

func (s *Sessions) DeleteExpiredForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from user_sessions where user_id = ? and expires_at <= ?`, userID, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Sessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from user_sessions where expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
