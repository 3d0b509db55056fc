package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"gmpportal/internal/metrics"
)

// ExpiredSessions is the slice of repository.SessionStore the purge needs.
type ExpiredSessions interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sessions ExpiredSessions
	metrics  *metrics.Metrics
	now      func() time.Time
	log      zerolog.Logger
}

func NewScheduler(sessions ExpiredSessions, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		sessions: sessions,
		metrics:  m,
		now:      time.Now,
		log:      log.With().Str("component", "jobs").Logger(),
	}
}

// Start registers the purge job on schedule (six-field cron with seconds) and
// starts the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if s.sessions == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, s.purge); err != nil {
		return fmt.Errorf("schedule session purge %q: %w", schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.PurgeExpired(ctx); err != nil {
		s.log.Error().Err(err).Msg("purge expired sessions failed")
	}
}

// PurgeExpired deletes session rows whose expiry has passed.
func (s *Scheduler) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	s.metrics.Purged(n)
	if n > 0 {
		s.log.Info().Int64("removed", n).Msg("expired sessions purged")
	}
	return n, nil
}
