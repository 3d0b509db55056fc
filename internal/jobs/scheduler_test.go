package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmpportal/internal/metrics"
)

type fakeSessions struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakeSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.cutoff = now
	return f.n, f.err
}

func TestPurgeExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessions{n: 3}
	m := metrics.New()
	s := NewScheduler(store, m, zerolog.Nop())
	s.now = func() time.Time { return now }

	n, err := s.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.True(t, store.cutoff.Equal(now))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsPurged))

	store.err = errors.New("db down")
	_, err = s.PurgeExpired(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsPurged))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakeSessions{}, nil, zerolog.Nop())
	assert.Error(t, s.Start("every tuesday"))

	require.NoError(t, s.Start("0 */15 * * * *"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
