package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gmpportal/internal/events"
	"gmpportal/internal/models"
	"gmpportal/internal/repository"
)

// AuditProcessor turns auth events into audit_logs rows. Inserts are
// idempotent on the event id, so redelivery after a failed ack is safe.
type AuditProcessor struct {
	store  repository.AuditStore
	logger zerolog.Logger
}

func NewAuditProcessor(store repository.AuditStore, logger zerolog.Logger) *AuditProcessor {
	return &AuditProcessor{
		store:  store,
		logger: logger,
	}
}

func (p *AuditProcessor) Handle(ctx context.Context, msg redis.XMessage) error {
	evt, err := events.FromValues(msg.Values)
	if err != nil {
		// A malformed message can never succeed; drop it so it is acked.
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("discarding malformed event")
		return nil
	}

	switch evt.Type {
	case models.EventRegister, models.EventLogin, models.EventLoginFailed, models.EventLogout,
		models.EventRoleChange, models.EventUserDelete:
	default:
		p.logger.Warn().Str("type", evt.Type).Msg("unknown event type")
	}

	entry := models.AuditEntry{
		ID:        evt.ID,
		UserID:    evt.UserID,
		Action:    evt.Type,
		Metadata:  evt.Metadata,
		RequestID: evt.RequestID,
		CreatedAt: evt.OccurredAt,
	}
	if err := p.store.Insert(ctx, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	p.logger.Debug().Str("event", evt.Type).Str("user_id", evt.UserID).Msg("audit entry written")
	return nil
}
