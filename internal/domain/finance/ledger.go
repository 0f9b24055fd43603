package finance

import (
	"context"
	"errors"
	"time"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AppendEventInput describes one payment to append to the ledger
type AppendEventInput struct {
	ObligationID    uuid.UUID
	Amount          valueobject.Money
	Method          PaymentMethod
	Note            string
	ReferenceNumber string
	IdempotencyKey  string
	OccurredAt      time.Time
}

// PaymentLedger is the authoritative record of money applied to obligations.
// A ledger is bound to the repositories of one transaction; the caller updates
// the obligation's paid amount in that same transaction.
type PaymentLedger struct {
	obligations ObligationRepository
	events      PaymentEventRepository
	now         func() time.Time
}

// NewPaymentLedger creates a ledger over the given repositories
func NewPaymentLedger(obligations ObligationRepository, events PaymentEventRepository) *PaymentLedger {
	return &PaymentLedger{
		obligations: obligations,
		events:      events,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the ledger that reads time from now
func (l *PaymentLedger) WithClock(now func() time.Time) *PaymentLedger {
	clone := *l
	clone.now = now
	return &clone
}

// AppendEvent records a payment. It fails with INVALID_AMOUNT for amounts <= 0
// or with sub-minor-unit digits, and with a NOT_FOUND error when the obligation does not exist.
// The obligation itself is not modified.
func (l *PaymentLedger) AppendEvent(ctx context.Context, in AppendEventInput) (*PaymentEvent, error) {
	if err := ValidatePaymentAmount(in.Amount); err != nil {
		return nil, err
	}
	if _, err := l.obligations.FindByID(ctx, in.ObligationID); err != nil {
		return nil, err
	}

	seq, err := l.events.NextSequence(ctx, in.ObligationID)
	if err != nil {
		return nil, err
	}
	event, err := newPaymentEvent(in.ObligationID, seq, in, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.events.Append(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// SumFor returns the exact total of all payment events for an obligation
func (l *PaymentLedger) SumFor(ctx context.Context, obligationID uuid.UUID) (valueobject.Money, error) {
	amounts, err := l.events.AmountsFor(ctx, obligationID)
	if err != nil {
		return valueobject.Money{}, err
	}
	return valueobject.Sum(amounts...), nil
}

// Verify checks the ledger sum against the obligation's stored paid amount.
// A mismatch is returned as *IntegrityMismatchError and is never corrected here.
func (l *PaymentLedger) Verify(ctx context.Context, o *Obligation) error {
	sum, err := l.SumFor(ctx, o.ID)
	if err != nil {
		return err
	}
	if !sum.Equals(o.PaidAmount()) {
		return &IntegrityMismatchError{
			ObligationID: o.ID,
			StoredPaid:   o.PaidAmount(),
			LedgerSum:    sum,
		}
	}
	return nil
}

// History returns the payments of an obligation in acceptance order
func (l *PaymentLedger) History(ctx context.Context, obligationID uuid.UUID) ([]*PaymentEvent, error) {
	return l.events.FindByObligation(ctx, obligationID)
}

// FindByIdempotencyKey returns the event previously recorded under key.
// found is false when no event carries the key.
func (l *PaymentLedger) FindByIdempotencyKey(ctx context.Context, key string) (event *PaymentEvent, found bool, err error) {
	if key == "" {
		return nil, false, nil
	}
	event, err = l.events.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return event, true, nil
}
