package counting

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/cyclecount/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciliationService settles counted sessions against the stock ledger.
// Each divergent item becomes one inventory adjustment; items within
// tolerance are marked adjusted without touching the ledger.
type ReconciliationService struct {
	planRepo    counting.CountingPlanRepository
	sessionRepo counting.CountingSessionRepository
	itemRepo    counting.CountingItemRepository
	txScope     TransactionScope
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// NewReconciliationService creates a reconciliation service
func NewReconciliationService(
	planRepo counting.CountingPlanRepository,
	sessionRepo counting.CountingSessionRepository,
	itemRepo counting.CountingItemRepository,
	txScope TransactionScope,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		planRepo:    planRepo,
		sessionRepo: sessionRepo,
		itemRepo:    itemRepo,
		txScope:     txScope,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Settle applies the trusted quantities of a session to the stock ledger.
// Settlement is item-atomic: every item commits its adjustment and status
// flip in one transaction, and a failure on one item leaves the others
// settled. Re-running Settle skips items already ADJUSTED, so a partially
// failed run can simply be invoked again.
func (s *ReconciliationService) Settle(ctx context.Context, sessionID uuid.UUID) (*SettlementResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != counting.SessionStatusInProgress && session.Status != counting.SessionStatusCompleted {
		return nil, shared.NewDomainError("INVALID_TRANSITION", "only in-progress or completed sessions can be settled")
	}
	plan, err := s.planRepo.FindByID(ctx, session.PlanID)
	if err != nil {
		return nil, err
	}

	items, err := s.itemRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &SettlementResponse{SessionID: sessionID}
	for i := range items {
		item := &items[i]
		switch {
		case item.Status == counting.ItemStatusAdjusted:
			result.Skipped++
			result.Items = append(result.Items, SettlementItemResult{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				Outcome:   SettlementOutcomeAlreadyAdjusted,
			})
			continue
		case item.Status == counting.ItemStatusCancelled || item.Status == counting.ItemStatusPending:
			continue
		case item.AwaitingRecount(plan):
			result.Skipped++
			result.Items = append(result.Items, SettlementItemResult{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				Outcome:   SettlementOutcomeRecountPending,
			})
			continue
		}

		movementID, err := s.settleItem(ctx, item, session)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, SettlementItemResult{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				Outcome:   SettlementOutcomeFailed,
				Error:     err.Error(),
			})
			s.logger.Error("failed to settle counting item",
				zap.String("item_id", item.ID.String()),
				zap.String("session_id", sessionID.String()),
				zap.Error(err))
			continue
		}
		result.Adjusted++
		result.Items = append(result.Items, SettlementItemResult{
			ItemID:     item.ID,
			ProductID:  item.ProductID,
			Outcome:    SettlementOutcomeAdjusted,
			MovementID: movementID,
		})

		s.publishEvents(ctx, item)
	}

	// refresh the session counters after the batch. A counter racing the
	// settlement can bump the session version between our read and write, so
	// version clashes get a fresh read like the per-count refresh does.
	var refreshErr error
	for attempt := 0; attempt < sessionRecomputeRetries; attempt++ {
		refreshErr = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			fresh, err := repos.Sessions().FindByID(ctx, sessionID)
			if err != nil {
				return err
			}
			current, err := repos.Items().FindBySession(ctx, sessionID)
			if err != nil {
				return err
			}
			fresh.RefreshProgress(current)
			return repos.Sessions().SaveWithVersion(ctx, fresh)
		})
		if refreshErr == nil || !errors.Is(refreshErr, shared.ErrConcurrencyConflict) {
			break
		}
	}
	if refreshErr != nil {
		s.logger.Warn("failed to refresh session aggregates after settlement",
			zap.String("session_id", sessionID.String()),
			zap.Error(refreshErr))
	}

	s.logger.Info("session settlement finished",
		zap.String("session_id", sessionID.String()),
		zap.Int("adjusted", result.Adjusted),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// settleItem flips one item to ADJUSTED and, when the trusted quantity
// diverged from the snapshot, posts the compensating ledger movement in the
// same transaction
func (s *ReconciliationService) settleItem(ctx context.Context, item *counting.CountingItem, session *counting.CountingSession) (*uuid.UUID, error) {
	var movementID *uuid.UUID
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := item.MarkAdjusted(); err != nil {
			return err
		}
		if item.HasDifference {
			reference := fmt.Sprintf("%s/%s", session.Code, item.ProductCode)
			id, err := repos.Ledger().PostAdjustment(ctx, item.ProductID, item.LocationID, item.Difference, reference)
			if err != nil {
				return err
			}
			movementID = &id
		}
		return repos.Items().SaveWithVersion(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return movementID, nil
}

func (s *ReconciliationService) publishEvents(ctx context.Context, item *counting.CountingItem) {
	for _, event := range item.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	item.ClearDomainEvents()
}
