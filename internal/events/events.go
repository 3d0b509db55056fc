// Package events publishes authentication outcomes to a Redis stream. The
// worker consumes the stream and persists each event as an audit row.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gmpportal/internal/ids"
)

const DefaultStream = "auth:events"

type Event struct {
	ID         string
	Type       string
	UserID     string
	RequestID  string
	Metadata   map[string]string
	OccurredAt time.Time
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// New builds an event with a fresh id.
func New(eventType, userID, requestID string, meta map[string]string) Event {
	return Event{
		ID:         ids.WithPrefix("evt"),
		Type:       eventType,
		UserID:     userID,
		RequestID:  requestID,
		Metadata:   meta,
		OccurredAt: time.Now().UTC(),
	}
}

// Values encodes evt as stream fields.
func (e Event) Values() (map[string]any, error) {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return map[string]any{
		"id":         e.ID,
		"type":       e.Type,
		"userId":     e.UserID,
		"requestId":  e.RequestID,
		"occurredAt": e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"metadata":   string(meta),
	}, nil
}

// FromValues decodes stream fields written by Values.
func FromValues(values map[string]any) (Event, error) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	evt := Event{
		ID:        str("id"),
		Type:      str("type"),
		UserID:    str("userId"),
		RequestID: str("requestId"),
	}
	if evt.ID == "" || evt.Type == "" {
		return Event{}, fmt.Errorf("event is missing id or type")
	}
	if raw := str("occurredAt"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Event{}, fmt.Errorf("parse occurredAt: %w", err)
		}
		evt.OccurredAt = t
	}
	if raw := str("metadata"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &evt.Metadata); err != nil {
			return Event{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return evt, nil
}

type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: 100_000}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	values, err := evt.Values()
	if err != nil {
		return err
	}
	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// LogPublisher writes events to the log only. It is used when Redis is
// disabled.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) LogPublisher {
	return LogPublisher{logger: logger}
}

func (p LogPublisher) Publish(_ context.Context, evt Event) error {
	p.logger.Debug().
		Str("event", evt.Type).
		Str("user_id", evt.UserID).
		Str("request_id", evt.RequestID).
		Msg("auth event")
	return nil
}
