package counting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SchedulerService materializes sessions from due plans. ProcessDue is safe
// to run from several instances at once: the unique (plan, scheduled date)
// constraint makes a concurrent duplicate a no-op, not a second session.
type SchedulerService struct {
	planRepo    counting.CountingPlanRepository
	sessionRepo counting.CountingSessionRepository
	catalog     counting.ProductCatalog
	ledger      counting.StockLedger
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// NewSchedulerService creates a scheduler service
func NewSchedulerService(
	planRepo counting.CountingPlanRepository,
	sessionRepo counting.CountingSessionRepository,
	catalog counting.ProductCatalog,
	ledger counting.StockLedger,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *SchedulerService {
	return &SchedulerService{
		planRepo:    planRepo,
		sessionRepo: sessionRepo,
		catalog:     catalog,
		ledger:      ledger,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// ProcessDue finds every ACTIVE plan whose next execution has arrived,
// creates the day's session with a frozen stock snapshot, and advances the
// plan's next execution. One failing plan does not stop the rest.
func (s *SchedulerService) ProcessDue(ctx context.Context, now time.Time) (*ProcessDueResult, error) {
	plans, err := s.planRepo.FindDue(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &ProcessDueResult{PlansDue: len(plans)}
	for i := range plans {
		plan := &plans[i]
		if err := s.processPlan(ctx, plan, now, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("plan %s: %v", plan.Code, err))
			s.logger.Error("scheduler failed to process plan",
				zap.String("plan_id", plan.ID.String()),
				zap.String("plan_code", plan.Code),
				zap.Error(err))
		}
	}

	if result.PlansDue > 0 {
		s.logger.Info("scheduler tick processed",
			zap.Int("plans_due", result.PlansDue),
			zap.Int("sessions_created", result.SessionsCreated),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("errors", len(result.Errors)))
	}
	return result, nil
}

func (s *SchedulerService) processPlan(ctx context.Context, plan *counting.CountingPlan, now time.Time, result *ProcessDueResult) error {
	scheduledDate := now
	if plan.NextExecution != nil {
		scheduledDate = *plan.NextExecution
	}

	created, empty, err := s.createScheduledSession(ctx, plan, scheduledDate)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// another instance won the race for this date; advancing the plan
			// is still our job if its pointer has not moved yet
			result.Duplicates++
		} else {
			return err
		}
	}
	if created {
		result.SessionsCreated++
	}
	if empty {
		result.EmptySessions++
	}

	plan.AdvanceNextExecution()
	return s.planRepo.Save(ctx, plan)
}

func (s *SchedulerService) createScheduledSession(ctx context.Context, plan *counting.CountingPlan, scheduledDate time.Time) (created, empty bool, err error) {
	code, err := s.sessionRepo.GenerateCode(ctx, scheduledDate)
	if err != nil {
		return false, false, err
	}
	session, err := counting.NewCountingSession(plan.ID, code, scheduledDate, nil, plan.CreatedByID)
	if err != nil {
		return false, false, err
	}

	items, err := snapshotItems(ctx, s.catalog, s.ledger, plan, session.ID)
	if err != nil {
		return false, false, err
	}
	if len(items) == 0 {
		// an empty session is still a valid audit record of the execution
		s.logger.Info("plan criteria resolved to no products",
			zap.String("plan_id", plan.ID.String()),
			zap.String("plan_code", plan.Code),
			zap.Time("scheduled_date", scheduledDate))
		empty = true
	}
	session.TotalItems = len(items)

	if err := s.sessionRepo.CreateWithItems(ctx, session, items); err != nil {
		return false, false, err
	}

	for _, event := range session.GetDomainEvents() {
		if pubErr := s.eventBus.Publish(ctx, event); pubErr != nil {
			s.logger.Warn("failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(pubErr))
		}
	}
	session.ClearDomainEvents()

	s.logger.Info("scheduled counting session created",
		zap.String("session_id", session.ID.String()),
		zap.String("code", session.Code),
		zap.String("plan_code", plan.Code),
		zap.Int("items", len(items)))
	return true, empty, nil
}
