package persistence

import (
	"context"

	appcounting "github.com/cyclecount/backend/internal/application/counting"
	"github.com/cyclecount/backend/internal/domain/counting"
	"gorm.io/gorm"
)

// GormTransactionScope implements the application TransactionScope over a
// GORM transaction. Repositories handed to the callback share the
// transaction connection, so every write inside Execute commits atomically.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn inside a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcounting.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepositories{tx: tx})
	})
}

type txRepositories struct {
	tx *gorm.DB
}

func (r *txRepositories) Sessions() counting.CountingSessionRepository {
	return NewGormSessionRepository(r.tx)
}

func (r *txRepositories) Items() counting.CountingItemRepository {
	return NewGormItemRepository(r.tx)
}

func (r *txRepositories) Ledger() counting.StockLedger {
	return NewGormStockLedger(r.tx)
}
