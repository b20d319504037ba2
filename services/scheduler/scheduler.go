package schedsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/reminder"
)

// Scheduler periodically triggers a reminder dispatch pass in-process, for
// deployments without an external cron invoker. The external trigger remains
// the primary one; overlapping invocations are tolerated by the dedup ledger.
type Scheduler struct {
	sched    *gocron.Scheduler
	svc      reminder.ServiceInterface
	logger   core.Logger
	interval time.Duration
}

func New(conf *core.Config, logger core.Logger, svc reminder.ServiceInterface) *Scheduler {
	return &Scheduler{
		sched:    gocron.NewScheduler(time.UTC),
		svc:      svc,
		logger:   logger,
		interval: conf.Reminder.ScheduleInterval,
	}
}

// Start schedules the periodic reminder pass and returns immediately.
func (s *Scheduler) Start() error {
	if _, err := s.sched.Every(s.interval).Do(s.runOnce); err != nil {
		return errors.Wrap(err, "scheduling reminder job")
	}
	s.sched.StartAsync()
	s.logger.Info(fmt.Sprintf("reminder scheduler started: every %s", s.interval))
	return nil
}

func (s *Scheduler) Stop() {
	s.sched.Stop()
}

func (s *Scheduler) runOnce() {
	// the run summary is logged by the service
	if _, err := s.svc.Run(context.Background()); err != nil {
		s.logger.Error(fmt.Sprintf("scheduled reminder run failed: %v", err), err)
	}
}
