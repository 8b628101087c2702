package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"filevault/internal/service"
)

// Scheduler runs the inactivity sweep on a cron schedule.
type Scheduler struct {
	cron  *cron.Cron
	sweep service.SweepService
	log   logrus.FieldLogger
}

// New registers the sweep under schedule, a standard five field cron expression.
// Overlapping runs are skipped.
func New(schedule string, sweep service.SweepService, log logrus.FieldLogger) (*Scheduler, error) {
	cronLog := cron.PrintfLogger(log)
	s := &Scheduler{
		cron:  cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		sweep: sweep,
		log:   log,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("sweep scheduler started")
}

// Stop prevents further runs and waits for a running sweep until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce removes expired users, then warns the ones approaching removal. A failed removal
// pass does not prevent the warning pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if removed, err := s.sweep.RemoveInactive(ctx); err != nil {
		s.log.WithError(err).Error("inactive user removal failed")
	} else {
		s.log.WithField("removed", removed).Info("inactive user removal finished")
	}

	if warned, err := s.sweep.NotifyInactive(ctx); err != nil {
		s.log.WithError(err).Error("inactive user warning failed")
	} else {
		s.log.WithField("warned", warned).Info("inactive user warning finished")
	}
}
