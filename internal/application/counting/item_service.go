package counting

import (
	"context"
	"errors"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessionRecomputeRetries bounds retries of the session aggregate refresh when
// concurrent counters race on the session row. Item writes are never retried;
// the loser of an item race must see the conflict.
const sessionRecomputeRetries = 3

// ItemService records counts and recounts against session items
type ItemService struct {
	planRepo    counting.CountingPlanRepository
	sessionRepo counting.CountingSessionRepository
	itemRepo    counting.CountingItemRepository
	txScope     TransactionScope
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// NewItemService creates an item service
func NewItemService(
	planRepo counting.CountingPlanRepository,
	sessionRepo counting.CountingSessionRepository,
	itemRepo counting.CountingItemRepository,
	txScope TransactionScope,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *ItemService {
	return &ItemService{
		planRepo:    planRepo,
		sessionRepo: sessionRepo,
		itemRepo:    itemRepo,
		txScope:     txScope,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// GetItem retrieves one item, blinding the system quantity when the plan asks
// for blind counting and the item is still uncounted
func (s *ItemService) GetItem(ctx context.Context, id uuid.UUID) (*ItemResponse, error) {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	blind, err := s.isBlind(ctx, item.SessionID)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item, blind)
	return &resp, nil
}

// ListSessionItems returns every item of a session
func (s *ItemService) ListSessionItems(ctx context.Context, sessionID uuid.UUID) ([]ItemResponse, error) {
	if _, err := s.sessionRepo.FindByID(ctx, sessionID); err != nil {
		return nil, err
	}
	items, err := s.itemRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	blind, err := s.isBlind(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ToItemResponses(items, blind), nil
}

// ListItems returns a filtered page of items across sessions
func (s *ItemService) ListItems(ctx context.Context, filter ItemListFilter) (*shared.Paginated[ItemResponse], error) {
	domainFilter := counting.ItemFilter{
		Filter:        shared.DefaultFilter(),
		SessionID:     filter.SessionID,
		HasDifference: filter.HasDifference,
		ProductID:     filter.ProductID,
	}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 && filter.PageSize <= 100 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		st := counting.ItemStatus(filter.Status)
		domainFilter.Status = &st
	}

	items, err := s.itemRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.itemRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	page := shared.NewPaginated(ToItemResponses(items, false), total, domainFilter.Page, domainFilter.PageSize)
	return &page, nil
}

// RecordCount submits a first count for an item. The session must be
// IN_PROGRESS. Two counters racing on the same item leave exactly one winner;
// the other receives CONCURRENT_MODIFICATION and must re-read before retrying.
func (s *ItemService) RecordCount(ctx context.Context, itemID uuid.UUID, req RecordCountRequest, countedBy uuid.UUID) (*ItemResponse, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	session, plan, err := s.loadActiveContext(ctx, item.SessionID)
	if err != nil {
		return nil, err
	}

	if err := item.RecordCount(req.CountedQty, countedBy, req.Notes, plan); err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Items().SaveWithVersion(ctx, item); err != nil {
			return err
		}
		return s.refreshSessionAggregates(ctx, repos, session.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, item)
	s.logger.Debug("count recorded",
		zap.String("item_id", item.ID.String()),
		zap.String("session_id", session.ID.String()),
		zap.Bool("has_difference", item.HasDifference))

	resp := ToItemResponse(item, false)
	return &resp, nil
}

// RecordRecount submits a verification recount for a divergent item. Only
// valid when the plan requires recounts and the first count diverged.
func (s *ItemService) RecordRecount(ctx context.Context, itemID uuid.UUID, req RecordRecountRequest, recountedBy uuid.UUID) (*ItemResponse, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	session, plan, err := s.loadActiveContext(ctx, item.SessionID)
	if err != nil {
		return nil, err
	}

	if err := item.RecordRecount(req.RecountQty, recountedBy, req.Notes, plan); err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Items().SaveWithVersion(ctx, item); err != nil {
			return err
		}
		return s.refreshSessionAggregates(ctx, repos, session.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, item)
	resp := ToItemResponse(item, false)
	return &resp, nil
}

// CancelItem drops an item from the session for a stated non-count reason,
// for example the product was not physically locatable
func (s *ItemService) CancelItem(ctx context.Context, itemID uuid.UUID, req CancelItemRequest) (*ItemResponse, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.FindByID(ctx, item.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, shared.NewDomainError("SESSION_NOT_ACTIVE", "session is no longer active")
	}

	if err := item.CancelWithReason(req.Reason); err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Items().SaveWithVersion(ctx, item); err != nil {
			return err
		}
		return s.refreshSessionAggregates(ctx, repos, session.ID)
	})
	if err != nil {
		return nil, err
	}

	resp := ToItemResponse(item, false)
	return &resp, nil
}

// loadActiveContext fetches the item's session and owning plan and enforces
// that counts only land on IN_PROGRESS sessions
func (s *ItemService) loadActiveContext(ctx context.Context, sessionID uuid.UUID) (*counting.CountingSession, *counting.CountingPlan, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != counting.SessionStatusInProgress {
		return nil, nil, shared.NewDomainError("SESSION_NOT_ACTIVE", "counts can only be recorded on in-progress sessions")
	}
	plan, err := s.planRepo.FindByID(ctx, session.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return session, plan, nil
}

// refreshSessionAggregates recomputes the session's derived counters from its
// items. The session row is shared between all counters, so a version clash
// here is routine and retried with a fresh read.
func (s *ItemService) refreshSessionAggregates(ctx context.Context, repos TransactionalRepositories, sessionID uuid.UUID) error {
	var lastErr error
	for attempt := 0; attempt < sessionRecomputeRetries; attempt++ {
		session, err := repos.Sessions().FindByID(ctx, sessionID)
		if err != nil {
			return err
		}
		items, err := repos.Items().FindBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		session.RefreshProgress(items)

		err = repos.Sessions().SaveWithVersion(ctx, session)
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *ItemService) isBlind(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	plan, err := s.planRepo.FindByID(ctx, session.PlanID)
	if err != nil {
		return false, err
	}
	return plan.AllowBlindCount, nil
}

func (s *ItemService) publishEvents(ctx context.Context, item *counting.CountingItem) {
	for _, event := range item.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	item.ClearDomainEvents()
}
