package counting

import (
	"context"
	"fmt"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionService manages counting session lifecycle and item snapshots
type SessionService struct {
	planRepo    counting.CountingPlanRepository
	sessionRepo counting.CountingSessionRepository
	itemRepo    counting.CountingItemRepository
	catalog     counting.ProductCatalog
	ledger      counting.StockLedger
	txScope     TransactionScope
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// NewSessionService creates a session service
func NewSessionService(
	planRepo counting.CountingPlanRepository,
	sessionRepo counting.CountingSessionRepository,
	itemRepo counting.CountingItemRepository,
	catalog counting.ProductCatalog,
	ledger counting.StockLedger,
	txScope TransactionScope,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		planRepo:    planRepo,
		sessionRepo: sessionRepo,
		itemRepo:    itemRepo,
		catalog:     catalog,
		ledger:      ledger,
		txScope:     txScope,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// snapshotItems resolves the plan criteria and freezes a system quantity per
// product at creation time. Later ledger movements do not retroactively change
// the baseline a count is judged against.
func snapshotItems(
	ctx context.Context,
	catalog counting.ProductCatalog,
	ledger counting.StockLedger,
	plan *counting.CountingPlan,
	sessionID uuid.UUID,
) ([]counting.CountingItem, error) {
	products, err := catalog.Resolve(ctx, plan.Criteria)
	if err != nil {
		return nil, err
	}

	items := make([]counting.CountingItem, 0, len(products))
	for _, product := range products {
		qty, err := ledger.CurrentQuantity(ctx, product.ID, plan.LocationID)
		if err != nil {
			return nil, fmt.Errorf("snapshot stock for product %s: %w", product.Code, err)
		}
		item, err := counting.NewCountingItem(sessionID, product, plan.LocationID, qty)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// CreateSession creates a session against a plan on demand. The plan must be
// ACTIVE. The (plan, scheduled date) pair is unique; a second session for the
// same date fails with ERR_ALREADY_EXISTS.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest, createdBy uuid.UUID) (*SessionResponse, error) {
	plan, err := s.planRepo.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.Status != counting.PlanStatusActive {
		return nil, shared.NewDomainError("PLAN_NOT_ACTIVE", "sessions can only be created for active plans")
	}

	scheduledDate := time.Now()
	if req.ScheduledDate != nil {
		scheduledDate = *req.ScheduledDate
	}

	code, err := s.sessionRepo.GenerateCode(ctx, scheduledDate)
	if err != nil {
		return nil, err
	}
	session, err := counting.NewCountingSession(plan.ID, code, scheduledDate, req.AssigneeID, createdBy)
	if err != nil {
		return nil, err
	}

	items, err := snapshotItems(ctx, s.catalog, s.ledger, plan, session.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		s.logger.Info("plan criteria resolved to no products",
			zap.String("plan_id", plan.ID.String()),
			zap.String("plan_code", plan.Code))
	}
	session.TotalItems = len(items)

	if err := s.sessionRepo.CreateWithItems(ctx, session, items); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, session)
	s.logger.Info("counting session created",
		zap.String("session_id", session.ID.String()),
		zap.String("code", session.Code),
		zap.Int("items", len(items)))

	resp := ToSessionResponse(session)
	return &resp, nil
}

// GetSession retrieves a session by ID
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSessionResponse(session)
	return &resp, nil
}

// GetSessionByCode retrieves a session by its business code
func (s *SessionService) GetSessionByCode(ctx context.Context, code string) (*SessionResponse, error) {
	session, err := s.sessionRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToSessionResponse(session)
	return &resp, nil
}

// SessionProgress reports the counting progress of one session
func (s *SessionService) SessionProgress(ctx context.Context, id uuid.UUID) (*SessionProgressResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionProgressResponse{
		SessionID:     session.ID,
		Status:        string(session.Status),
		TotalItems:    session.TotalItems,
		CountedItems:  session.CountedItems,
		PendingItems:  session.TotalItems - session.CountedItems,
		ItemsWithDiff: session.ItemsWithDiff,
		Progress:      session.Progress(),
	}, nil
}

// ListSessions returns a filtered page of sessions
func (s *SessionService) ListSessions(ctx context.Context, filter SessionListFilter) (*shared.Paginated[SessionResponse], error) {
	domainFilter := counting.SessionFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
		PlanID:     filter.PlanID,
		AssigneeID: filter.AssigneeID,
		StartDate:  filter.StartDate,
		EndDate:    filter.EndDate,
	}
	if domainFilter.Page <= 0 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize <= 0 || domainFilter.PageSize > 100 {
		domainFilter.PageSize = 20
	}
	if filter.Status != "" {
		st := counting.SessionStatus(filter.Status)
		domainFilter.Status = &st
	}

	sessions, err := s.sessionRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.sessionRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToSessionResponses(sessions), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// StartSession moves a session from SCHEDULED to IN_PROGRESS
func (s *SessionService) StartSession(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := session.Start(); err != nil {
		return nil, err
	}
	if err := s.sessionRepo.SaveWithVersion(ctx, session); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, session)
	resp := ToSessionResponse(session)
	return &resp, nil
}

// CompleteSession finishes a session and freezes its accuracy figures. With
// items still pending it fails with ERR_INCOMPLETE_ITEMS unless force is set,
// in which case the pending items are cancelled rather than silently skipped.
func (s *SessionService) CompleteSession(ctx context.Context, id uuid.UUID, req CompleteSessionRequest, completedBy uuid.UUID) (*SessionResponse, error) {
	var session *counting.CountingSession
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		session, err = repos.Sessions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if session.Status != counting.SessionStatusInProgress {
			return shared.NewDomainError("INVALID_TRANSITION", "only in-progress sessions can be completed")
		}

		items, err := repos.Items().FindBySession(ctx, id)
		if err != nil {
			return err
		}

		pending := 0
		for i := range items {
			if items[i].Status == counting.ItemStatusPending {
				pending++
			}
		}
		if pending > 0 {
			if !req.Force {
				return shared.NewDomainError("INCOMPLETE_ITEMS",
					fmt.Sprintf("%d items have not been counted", pending))
			}
			for i := range items {
				if items[i].Status != counting.ItemStatusPending {
					continue
				}
				items[i].CancelCascade("session force-completed before count")
				if err := repos.Items().SaveWithVersion(ctx, &items[i]); err != nil {
					return err
				}
			}
		}

		session.RecomputeAggregates(items)
		if err := session.Complete(completedBy); err != nil {
			return err
		}
		return repos.Sessions().SaveWithVersion(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, session)
	s.logger.Info("counting session completed",
		zap.String("session_id", session.ID.String()),
		zap.String("accuracy", session.AccuracyPercent.String()))

	resp := ToSessionResponse(session)
	return &resp, nil
}

// CancelSession aborts a session and cancels every non-terminal item with it
func (s *SessionService) CancelSession(ctx context.Context, id uuid.UUID) (*SessionResponse, error) {
	var session *counting.CountingSession
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		session, err = repos.Sessions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := session.Cancel(); err != nil {
			return err
		}

		items, err := repos.Items().FindBySession(ctx, id)
		if err != nil {
			return err
		}
		for i := range items {
			if items[i].Status.IsTerminal() {
				continue
			}
			items[i].CancelCascade("session cancelled")
			if err := repos.Items().SaveWithVersion(ctx, &items[i]); err != nil {
				return err
			}
		}
		return repos.Sessions().SaveWithVersion(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, session)
	resp := ToSessionResponse(session)
	return &resp, nil
}

func (s *SessionService) publishEvents(ctx context.Context, session *counting.CountingSession) {
	for _, event := range session.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	session.ClearDomainEvents()
}
