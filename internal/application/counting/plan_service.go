package counting

import (
	"context"
	"errors"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlanService manages the counting plan lifecycle
type PlanService struct {
	planRepo    counting.CountingPlanRepository
	sessionRepo counting.CountingSessionRepository
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// NewPlanService creates a plan service
func NewPlanService(
	planRepo counting.CountingPlanRepository,
	sessionRepo counting.CountingSessionRepository,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *PlanService {
	return &PlanService{
		planRepo:    planRepo,
		sessionRepo: sessionRepo,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// CreatePlan creates a new counting plan in DRAFT status
func (s *PlanService) CreatePlan(ctx context.Context, req CreatePlanRequest, createdBy uuid.UUID) (*PlanResponse, error) {
	existing, err := s.planRepo.FindByCode(ctx, req.Code)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("PLAN_CODE_EXISTS", "a counting plan with this code already exists")
	}

	startDate := time.Now()
	if req.StartDate != nil {
		startDate = *req.StartDate
	}

	plan, err := counting.NewCountingPlan(
		req.Code,
		req.Name,
		counting.PlanType(req.Type),
		counting.Frequency(req.Frequency),
		req.Criteria,
		startDate,
		createdBy,
	)
	if err != nil {
		return nil, err
	}
	plan.Description = req.Description
	plan.LocationID = req.LocationID
	plan.AllowBlindCount = req.AllowBlindCount
	plan.RequireRecount = req.RequireRecount
	if err := plan.SetTolerances(req.TolerancePercent, req.ToleranceQty); err != nil {
		return nil, err
	}

	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, plan)
	s.logger.Info("counting plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("code", plan.Code),
		zap.String("type", string(plan.Type)))

	resp := ToPlanResponse(plan)
	return &resp, nil
}

// GetPlan retrieves a plan by ID
func (s *PlanService) GetPlan(ctx context.Context, id uuid.UUID) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// GetPlanByCode retrieves a plan by its business code
func (s *PlanService) GetPlanByCode(ctx context.Context, code string) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// ListPlans returns a filtered page of plans
func (s *PlanService) ListPlans(ctx context.Context, filter PlanListFilter) (*shared.Paginated[PlanResponse], error) {
	domainFilter := counting.PlanFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
	}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 || domainFilter.PageSize > 100 {
		domainFilter.PageSize = 20
	}
	if filter.Status != "" {
		st := counting.PlanStatus(filter.Status)
		domainFilter.Status = &st
	}
	if filter.Type != "" {
		pt := counting.PlanType(filter.Type)
		domainFilter.Type = &pt
	}
	if filter.Frequency != "" {
		fr := counting.Frequency(filter.Frequency)
		domainFilter.Frequency = &fr
	}

	plans, err := s.planRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.planRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToPlanResponses(plans), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// UpdatePlan applies a partial update. Scope-defining fields (criteria,
// frequency) can only change while the plan is still in DRAFT.
func (s *PlanService) UpdatePlan(ctx context.Context, id uuid.UUID, req UpdatePlanRequest) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Criteria != nil || req.Frequency != nil {
		if !plan.CanEditScope() {
			return nil, shared.NewDomainError("PLAN_SCOPE_LOCKED", "criteria and frequency can only be changed while the plan is in draft or paused")
		}
	}
	if req.Criteria != nil {
		if err := req.Criteria.Validate(); err != nil {
			return nil, err
		}
		plan.Criteria = *req.Criteria
	}
	if req.Frequency != nil {
		fr := counting.Frequency(*req.Frequency)
		if !fr.IsValid() {
			return nil, shared.NewDomainError("INVALID_FREQUENCY", "unknown counting frequency")
		}
		plan.Frequency = fr
	}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, shared.NewDomainError("INVALID_INPUT", "plan name cannot be empty")
		}
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.AllowBlindCount != nil {
		plan.AllowBlindCount = *req.AllowBlindCount
	}
	if req.RequireRecount != nil {
		plan.RequireRecount = *req.RequireRecount
	}
	if req.ClearTolerances {
		if err := plan.SetTolerances(nil, nil); err != nil {
			return nil, err
		}
	} else if req.TolerancePercent != nil || req.ToleranceQty != nil {
		pct := plan.TolerancePercent
		qty := plan.ToleranceQty
		if req.TolerancePercent != nil {
			pct = req.TolerancePercent
		}
		if req.ToleranceQty != nil {
			qty = req.ToleranceQty
		}
		if err := plan.SetTolerances(pct, qty); err != nil {
			return nil, err
		}
	}
	plan.UpdatedAt = time.Now()

	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}

	resp := ToPlanResponse(plan)
	return &resp, nil
}

// ActivatePlan transitions a plan to ACTIVE and computes its next execution
func (s *PlanService) ActivatePlan(ctx context.Context, id uuid.UUID) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := plan.Activate(time.Now()); err != nil {
		return nil, err
	}
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, plan)
	s.logger.Info("counting plan activated",
		zap.String("plan_id", plan.ID.String()),
		zap.String("code", plan.Code))

	resp := ToPlanResponse(plan)
	return &resp, nil
}

// PausePlan suspends scheduling for a plan
func (s *PlanService) PausePlan(ctx context.Context, id uuid.UUID) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := plan.Pause(); err != nil {
		return nil, err
	}
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// CancelPlan cancels a plan. Cancelling an already cancelled plan is a no-op.
func (s *PlanService) CancelPlan(ctx context.Context, id uuid.UUID) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := plan.Cancel(); err != nil {
		return nil, err
	}
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// CompletePlan marks a plan as having run its course
func (s *PlanService) CompletePlan(ctx context.Context, id uuid.UUID) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := plan.Complete(); err != nil {
		return nil, err
	}
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}
	resp := ToPlanResponse(plan)
	return &resp, nil
}

// DeletePlan removes a plan. Plans with sessions in flight cannot be deleted.
func (s *PlanService) DeletePlan(ctx context.Context, id uuid.UUID) error {
	plan, err := s.planRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	active, err := s.sessionRepo.CountActiveByPlan(ctx, plan.ID)
	if err != nil {
		return err
	}
	if active > 0 {
		return shared.NewDomainError("HAS_ACTIVE_SESSIONS", "plan has scheduled or in-progress sessions")
	}
	return s.planRepo.Delete(ctx, plan.ID)
}

func (s *PlanService) publishEvents(ctx context.Context, plan *counting.CountingPlan) {
	for _, event := range plan.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	plan.ClearDomainEvents()
}
