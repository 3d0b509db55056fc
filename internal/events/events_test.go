package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesDecodeBack(t *testing.T) {
	evt := New("login", "usr_1", "req-1", map[string]string{"ip": "10.0.0.1"})
	values, err := evt.Values()
	require.NoError(t, err)

	got, err := FromValues(values)
	require.NoError(t, err)
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, "login", got.Type)
	assert.Equal(t, "usr_1", got.UserID)
	assert.Equal(t, "10.0.0.1", got.Metadata["ip"])
	assert.True(t, evt.OccurredAt.Equal(got.OccurredAt))
}

func TestFromValuesRejectsIncompleteEvents(t *testing.T) {
	_, err := FromValues(map[string]any{"type": "login"})
	assert.Error(t, err)

	_, err = FromValues(map[string]any{"id": "evt_1", "type": "login", "occurredAt": "yesterday"})
	assert.Error(t, err)
}

func TestLogPublisherNeverFails(t *testing.T) {
	p := NewLogPublisher(zerolog.Nop())
	assert.NoError(t, p.Publish(context.Background(), New("logout", "usr_1", "", nil)))
}

func TestRedisPublisher(t *testing.T) {
	addr := os.Getenv("GMP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GMP_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := "test:auth:events:" + time.Now().Format("150405.000")
	defer client.Del(context.Background(), stream)

	require.NoError(t, NewRedisPublisher(client, stream).Publish(ctx, New("register", "usr_1", "req-1", nil)))

	msgs, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	got, err := FromValues(msgs[0].Values)
	require.NoError(t, err)
	assert.Equal(t, "register", got.Type)
}
