package scheduler

import (
	"context"
	"time"

	"github.com/mattelianyc/microdawgs/internal/logger"
)

// Sweeper is the slice of the job store the sweeper needs.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// JobSweeper periodically deletes job records older than maxAge. Multiple
// gateway instances may run sweepers concurrently; Sweep tolerates racing
// deletes.
type JobSweeper struct {
	store    Sweeper
	log      logger.Logger
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
}

func NewJobSweeper(store Sweeper, log logger.Logger, interval, maxAge time.Duration) *JobSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &JobSweeper{
		store:    store,
		log:      log,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

// Start runs an immediate sweep, then sweeps on every tick until Stop or
// context cancellation.
func (s *JobSweeper) Start(ctx context.Context) error {
	if err := s.sweepOnce(ctx); err != nil {
		s.log.Warn("initial job sweep failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.sweepOnce(ctx); err != nil {
					s.log.Error("job sweep failed", logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper.
func (s *JobSweeper) Stop() {
	close(s.stopCh)
}

func (s *JobSweeper) sweepOnce(ctx context.Context) error {
	deleted, err := s.store.Sweep(ctx, s.maxAge)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info("job sweep completed",
			logger.Int("jobs_deleted", deleted),
			logger.Duration("max_age", s.maxAge))
	} else {
		s.log.Debug("no jobs to sweep")
	}
	return nil
}
