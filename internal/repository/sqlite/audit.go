package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gmpportal/internal/models"
	"gmpportal/internal/repository"
)

type Audit struct {
	db *sql.DB
}

func NewAudit(db *sql.DB) *Audit {
	return &Audit{db: db}
}

var _ repository.AuditStore = (*Audit)(nil)

func (a *Audit) Insert(ctx context.Context, entry models.AuditEntry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = a.db.ExecContext(ctx, `
		insert or ignore into audit_logs (id, user_id, action, metadata, request_id, created_at)
		values (?, nullif(?, ''), ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, string(meta), entry.RequestID, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (a *Audit) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = repository.DefaultListLimit
	}
	rows, err := a.db.QueryContext(ctx, `
		select id, coalesce(user_id, ''), action, metadata, request_id, created_at
		from audit_logs
		where user_id = ?
		order by created_at desc
		limit ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			entry models.AuditEntry
			meta  string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &meta, &entry.RequestID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
