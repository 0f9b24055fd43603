package persistence

import (
	"context"

	appfinance "github.com/erp/dues/internal/application/finance"
	"github.com/erp/dues/internal/domain/finance"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. An error from fn rolls back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) ObligationRepo() finance.ObligationRepository {
	return NewGormObligationRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentEventRepo() finance.PaymentEventRepository {
	return NewGormPaymentEventRepository(r.tx)
}

var _ appfinance.TransactionScope = (*GormTransactionScope)(nil)
var _ appfinance.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
