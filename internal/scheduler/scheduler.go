package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger deletes audit rows older than a cutoff. *store.InteractionStore
// implements it.
type Purger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler manages the service's cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a scheduler. Jobs that are still running when their next
// tick arrives are skipped.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// AddPurge schedules a retention purge on a cron schedule (five-field
// or a descriptor such as @daily). Each run is bounded by timeout.
func (s *Scheduler) AddPurge(spec string, p Purger, retention, timeout time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := Purge(ctx, p, retention, time.Now())
		if err != nil {
			s.logger.Warn("interaction purge failed", "error", err)
			return
		}
		s.logger.Info("interaction purge", "deleted", n, "retention", retention.String())
	})
	if err != nil {
		return fmt.Errorf("schedule purge %q: %w", spec, err)
	}
	return nil
}

// Purge deletes everything older than now minus retention.
func Purge(ctx context.Context, p Purger, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	n, err := p.PurgeOlderThan(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge interactions: %w", err)
	}
	return n, nil
}
