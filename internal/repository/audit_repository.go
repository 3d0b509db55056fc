package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"gmpportal/internal/models"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, entry models.AuditEntry) error {
	const query = `
		INSERT INTO audit_logs (id, user_id, action, metadata, request_id, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx, query, entry.ID, entry.UserID, entry.Action, meta, entry.RequestID, entry.CreatedAt)
	return err
}

func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	const query = `
		SELECT id, COALESCE(user_id, ''), action, metadata, request_id, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			entry models.AuditEntry
			meta  []byte
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &meta, &entry.RequestID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
