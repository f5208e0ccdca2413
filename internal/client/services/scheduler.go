package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"

	"github.com/gatherhall/doorsync/internal/common"
	"github.com/gatherhall/doorsync/internal/logging"
)

// Scheduler drives background sync on a fixed interval. Each cycle retries
// transient transport failures with exponential backoff; conflicts and
// validation errors are terminal per action and never retried here.
type Scheduler struct {
	syncService *SyncService
	interval    time.Duration
	maxRetries  uint64
	logger      logging.Logger
	cron        *cron.Cron
	entryID     cron.EntryID
}

func NewScheduler(s *SyncService, interval time.Duration, l logging.Logger) *Scheduler {
	return &Scheduler{
		syncService: s,
		interval:    interval,
		maxRetries:  4,
		logger:      l.With("module", "scheduler"),
		cron:        cron.New(),
	}
}

// Start registers the periodic job and begins running it. The context bounds
// each cycle, not the scheduler itself; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	s.logger.Info(ctx, "background sync started", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(time.Second))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.syncService.SyncAll(ctx)
		if errors.Is(err, common.ErrRetryable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		s.logger.Warn(ctx, "background sync cycle failed", "error", err)
	}
}
