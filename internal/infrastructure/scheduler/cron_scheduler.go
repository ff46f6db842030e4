package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appcounting "github.com/cyclecount/backend/internal/application/counting"
)

// CronScheduler drives the due-plan sweep on a fixed cron schedule. The
// schedule only controls how often we look; which plans fire is decided by
// their next_execution timestamps, so a missed tick is caught up on the next
// one.
type CronScheduler struct {
	cron        *cron.Cron
	service     *appcounting.SchedulerService
	schedule    string
	tickTimeout time.Duration
	logger      *zap.Logger
}

// NewCronScheduler creates a new CronScheduler
func NewCronScheduler(service *appcounting.SchedulerService, schedule string, tickTimeout time.Duration, logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{
		cron:        cron.New(),
		service:     service,
		schedule:    schedule,
		tickTimeout: tickTimeout,
		logger:      logger,
	}
}

// Start registers the sweep job and starts the cron loop
func (s *CronScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.tick); err != nil {
		return err
	}
	s.logger.Info("counting scheduler started", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for a running tick to finish
func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("counting scheduler stopped")
}

func (s *CronScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
	defer cancel()

	result, err := s.service.ProcessDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("due-plan sweep failed", zap.Error(err))
		return
	}
	if result.PlansDue == 0 {
		return
	}
	s.logger.Info("due-plan sweep finished",
		zap.Int("plans_due", result.PlansDue),
		zap.Int("sessions_created", result.SessionsCreated),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("empty_sessions", result.EmptySessions),
		zap.Strings("errors", result.Errors))
}
