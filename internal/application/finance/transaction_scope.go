package finance

import (
	"context"

	"github.com/erp/dues/internal/domain/finance"
)

// TransactionScope runs a unit of work in one database transaction.
// All repositories handed to fn share that transaction; an error from fn rolls it back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the reconciliation repositories bound to one transaction
type TransactionalRepositories interface {
	ObligationRepo() finance.ObligationRepository
	PaymentEventRepo() finance.PaymentEventRepository
}
