// Package scheduler runs the periodic anchoring and monitoring jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"webmarcas-backend/internal/logger"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	locker Locker
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a scheduler. A nil locker runs every job on every replica.
func New(locker Locker, log *zap.Logger) *Scheduler {
	if locker == nil {
		locker = noLock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// Skip a tick while the previous run of the same job is still going.
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		locker: locker,
		logger: logger.OrNop(log),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers fn under a cron spec (standard five fields or a
// descriptor such as "@every 1m"). Each run gets its own timeout and holds
// the job lock for that long.
func (s *Scheduler) AddJob(name, spec string, timeout time.Duration, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, timeout, fn)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, timeout time.Duration, fn JobFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	release, err := s.locker.Acquire(ctx, name, timeout)
	if err != nil {
		s.logger.Warn("job lock unavailable", zap.String("job", name), zap.Error(err))
		return
	}
	if release == nil {
		s.logger.Debug("job already running elsewhere", zap.String("job", name))
		return
	}
	defer func() {
		// The run context may be done already.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn("job lock release failed", zap.String("job", name), zap.Error(err))
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("job finished", zap.String("job", name), zap.Duration("duration", time.Since(start)))
}

// RunNow executes a registered job body once, outside the schedule.
func (s *Scheduler) RunNow(name string, timeout time.Duration, fn JobFunc) {
	s.run(name, timeout, fn)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}
