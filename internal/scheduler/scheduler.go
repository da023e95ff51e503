package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/airbot/internal/airquality"
)

const (
	defaultInterval = 15 * time.Minute
	refreshTimeout  = 30 * time.Second
)

// Refresher is the part of airquality.Service the scheduler drives.
type Refresher interface {
	Sources() []airquality.Source
	Refresh(ctx context.Context, source airquality.Source) error
}

// Scheduler periodically rebuilds the report of every configured source.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	interval  time.Duration
	logger    *slog.Logger

	// ctx is cancelled by Stop so a running refresh ends with the scheduler.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. A non-positive interval falls back to 15 minutes.
func New(interval time.Duration, service Refresher, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.service.Sources()) == 0 {
		s.logger.Warn("no sources configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.RunOnce(s.ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce refreshes every source one after another and returns the number of
// sources that failed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Info("running report refresh")

	failed := 0
	for _, source := range s.service.Sources() {
		if ctx.Err() != nil {
			s.logger.Warn("refresh cancelled", "error", ctx.Err())
			return failed + 1
		}

		runCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		start := time.Now()
		err := s.service.Refresh(runCtx, source)
		cancel()

		if err != nil {
			failed++
			s.logger.Error("refresh failed", "source", source, "error", err)
			continue
		}
		s.logger.Info("refresh completed", "source", source, "elapsed", time.Since(start))
	}
	return failed
}

// Stop cancels a refresh in progress, then stops the scheduler and any
// future jobs.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
