package finance

import (
	"context"
	"time"

	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ObligationFilter defines filtering options for obligation queries
type ObligationFilter struct {
	Kind   *ObligationKind // nil means all kinds
	Status *PaymentStatus  // nil means all statuses
	From   *time.Time      // OccurredOn >= From
	To     *time.Time      // OccurredOn < To
	Search string          // matches counterparty label or reference
	Limit  int             // 0 means no limit
	Offset int
}

// ForMonth restricts the filter to the calendar month m
func (f ObligationFilter) ForMonth(m Month) ObligationFilter {
	from, to := m.Start(), m.End()
	f.From = &from
	f.To = &to
	return f
}

// ObligationRepository defines the interface for obligation persistence
type ObligationRepository interface {
	// FindByID finds an obligation by ID. Returns a NOT_FOUND domain error when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Obligation, error)

	// FindByIDForUpdate finds an obligation and locks its row until the transaction ends.
	// Only meaningful inside a transaction scope.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Obligation, error)

	// FindByExternalID finds the obligation wrapping an owning domain record
	FindByExternalID(ctx context.Context, kind ObligationKind, externalID string) (*Obligation, error)

	// FindAll finds obligations matching the filter ordered by occurred_on, id
	FindAll(ctx context.Context, filter ObligationFilter) ([]*Obligation, error)

	// Count counts obligations matching the filter
	Count(ctx context.Context, filter ObligationFilter) (int64, error)

	// Create inserts a new obligation
	Create(ctx context.Context, o *Obligation) error

	// SaveWithLock updates an obligation if its stored version is o.Version-1.
	// Returns a CONCURRENCY_CONFLICT domain error otherwise.
	SaveWithLock(ctx context.Context, o *Obligation) error
}

// PaymentEventRepository defines the interface for the append-only payment ledger store.
// There are no update or delete operations.
type PaymentEventRepository interface {
	// Append inserts a payment event
	Append(ctx context.Context, event *PaymentEvent) error

	// NextSequence returns the next per-obligation sequence number (1 for the first payment)
	NextSequence(ctx context.Context, obligationID uuid.UUID) (int, error)

	// AmountsFor returns the amounts of all events for an obligation
	AmountsFor(ctx context.Context, obligationID uuid.UUID) ([]valueobject.Money, error)

	// FindByObligation returns all events for an obligation ordered by sequence
	FindByObligation(ctx context.Context, obligationID uuid.UUID) ([]*PaymentEvent, error)

	// FindByIdempotencyKey returns the event recorded with key, or a NOT_FOUND domain error
	FindByIdempotencyKey(ctx context.Context, key string) (*PaymentEvent, error)
}
