package counting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cyclecount/backend/internal/domain/counting"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultReportCacheTTL = 30 * time.Second

// ReportService builds divergence and accuracy reports. Reports are
// recomputed from current state on every miss; the redis cache only smooths
// dashboard refresh bursts and is optional.
type ReportService struct {
	planRepo    counting.CountingPlanRepository
	sessionRepo counting.CountingSessionRepository
	itemRepo    counting.CountingItemRepository
	catalog     counting.ProductCatalog
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewReportService creates a report service. cache may be nil, in which case
// every report is computed fresh.
func NewReportService(
	planRepo counting.CountingPlanRepository,
	sessionRepo counting.CountingSessionRepository,
	itemRepo counting.CountingItemRepository,
	catalog counting.ProductCatalog,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ReportService {
	if cacheTTL <= 0 {
		cacheTTL = defaultReportCacheTTL
	}
	return &ReportService{
		planRepo:    planRepo,
		sessionRepo: sessionRepo,
		itemRepo:    itemRepo,
		catalog:     catalog,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// SessionReport builds the divergence report for one session, splitting
// divergent items into shortages and surpluses and valuing each difference
// at the product's current standard cost
func (s *ReportService) SessionReport(ctx context.Context, sessionID uuid.UUID) (*SessionReport, error) {
	cacheKey := fmt.Sprintf("report:session:%s", sessionID)
	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		var report SessionReport
		if err := json.Unmarshal(cached, &report); err == nil {
			return &report, nil
		}
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	report := &SessionReport{
		SessionID:            session.ID,
		SessionCode:          session.Code,
		PlanID:               session.PlanID,
		Status:               string(session.Status),
		TotalItems:           session.TotalItems,
		CountedItems:         session.CountedItems,
		ItemsWithDiff:        session.ItemsWithDiff,
		AccuracyPercent:      session.AccuracyPercent,
		Shortages:            []DivergenceLine{},
		Surpluses:            []DivergenceLine{},
		TotalDifferenceValue: decimal.Zero,
		GeneratedAt:          time.Now(),
	}

	for i := range items {
		item := &items[i]
		if !item.HasDifference || item.Status == counting.ItemStatusCancelled {
			continue
		}
		trusted, ok := item.TrustedQty()
		if !ok {
			continue
		}

		line := DivergenceLine{
			ProductID:   item.ProductID,
			ProductCode: item.ProductCode,
			ProductName: item.ProductName,
			Unit:        item.Unit,
			SystemQty:   item.SystemQty,
			FinalQty:    trusted,
			Difference:  item.Difference,
		}

		// valuation uses the cost in effect at report time, not count time.
		// The per-line value keeps its sign; the total sums absolute values
		// so shortages and surpluses cannot cancel each other out.
		if info, err := s.catalog.Get(ctx, item.ProductID); err == nil {
			line.DifferenceValue = item.Difference.Mul(info.StandardCost)
			report.TotalDifferenceValue = report.TotalDifferenceValue.Add(item.Difference.Abs().Mul(info.StandardCost))
		} else {
			s.logger.Warn("product lookup failed during report valuation",
				zap.String("product_id", item.ProductID.String()),
				zap.Error(err))
		}

		if item.Difference.IsNegative() {
			report.Shortages = append(report.Shortages, line)
		} else {
			report.Surpluses = append(report.Surpluses, line)
		}
	}

	s.toCache(ctx, cacheKey, report)
	return report, nil
}

// PlanAccuracyReport aggregates accuracy across a plan's completed sessions,
// newest first
func (s *ReportService) PlanAccuracyReport(ctx context.Context, planID uuid.UUID) (*PlanAccuracyReport, error) {
	cacheKey := fmt.Sprintf("report:plan:%s", planID)
	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		var report PlanAccuracyReport
		if err := json.Unmarshal(cached, &report); err == nil {
			return &report, nil
		}
	}

	plan, err := s.planRepo.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	completed := counting.SessionStatusCompleted
	filter := counting.SessionFilter{
		Status: &completed,
		PlanID: &plan.ID,
	}
	filter.Page = 1
	filter.PageSize = 100
	filter.OrderBy = "completed_at"
	filter.OrderDir = "desc"

	sessions, err := s.sessionRepo.FindByPlan(ctx, plan.ID, filter)
	if err != nil {
		return nil, err
	}

	report := &PlanAccuracyReport{
		PlanID:          plan.ID,
		PlanCode:        plan.Code,
		Sessions:        make([]PlanAccuracyPoint, 0, len(sessions)),
		AverageAccuracy: decimal.Zero,
		GeneratedAt:     time.Now(),
	}

	sum := decimal.Zero
	for i := range sessions {
		sess := &sessions[i]
		report.Sessions = append(report.Sessions, PlanAccuracyPoint{
			SessionID:       sess.ID,
			SessionCode:     sess.Code,
			CompletedAt:     sess.CompletedAt,
			TotalItems:      sess.TotalItems,
			ItemsWithDiff:   sess.ItemsWithDiff,
			AccuracyPercent: sess.AccuracyPercent,
		})
		sum = sum.Add(sess.AccuracyPercent)
	}
	if len(sessions) > 0 {
		report.AverageAccuracy = sum.Div(decimal.NewFromInt(int64(len(sessions)))).Round(2)
	}

	s.toCache(ctx, cacheKey, report)
	return report, nil
}

func (s *ReportService) fromCache(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *ReportService) toCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
