package counting

import (
	"context"

	"github.com/cyclecount/backend/internal/domain/counting"
)

// TransactionScope provides transactional access to the counting repositories
// and the stock ledger. All operations performed inside Execute share one
// database transaction and commit or roll back together; this is what keeps a
// settlement's ledger write and item transition atomic.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to the current
// transaction
type TransactionalRepositories interface {
	Sessions() counting.CountingSessionRepository
	Items() counting.CountingItemRepository
	Ledger() counting.StockLedger
}

// NoOpTransactionScope runs the function without a real transaction. Useful
// for tests.
type NoOpTransactionScope struct {
	SessionRepo counting.CountingSessionRepository
	ItemRepo    counting.CountingItemRepository
	LedgerPort  counting.StockLedger
}

// Execute runs the function directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Sessions returns the session repository
func (s *NoOpTransactionScope) Sessions() counting.CountingSessionRepository {
	return s.SessionRepo
}

// Items returns the item repository
func (s *NoOpTransactionScope) Items() counting.CountingItemRepository {
	return s.ItemRepo
}

// Ledger returns the stock ledger port
func (s *NoOpTransactionScope) Ledger() counting.StockLedger {
	return s.LedgerPort
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
