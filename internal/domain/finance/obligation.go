package finance

import (
	"strings"
	"time"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AggregateTypeObligation is the aggregate type name carried on domain events
const AggregateTypeObligation = "Obligation"

// Obligation is the single reconciliation view over a sale, purchase, expense
// or payroll record. Kind-specific fields stay on the owning domain's record,
// linked by ExternalID.
//
// The paid amount and status are unexported: the paid amount only grows
// through ApplyPayment and the status is always ResolveStatus(total, paid).
type Obligation struct {
	shared.BaseAggregateRoot
	Kind              ObligationKind
	ExternalID        string
	Reference         string
	OccurredOn        time.Time
	CounterpartyLabel string

	totalAmount valueobject.Money
	paidAmount  valueobject.Money
	status      PaymentStatus
}

// ObligationSource is what an owning domain supplies when its record is created
type ObligationSource struct {
	Kind              ObligationKind
	ExternalID        string
	Reference         string
	OccurredOn        time.Time
	TotalAmount       valueobject.Money
	CounterpartyLabel string
	// InitiallyPaid marks records settled at entry (cash sales, paid expenses).
	InitiallyPaid bool
	// PaymentMethod for the settle-at-entry payment. Defaults to CASH.
	PaymentMethod PaymentMethod
}

// NewObligation creates an unpaid obligation from its source record.
// Settle-at-entry is not applied here; the ledger must record that payment
// so the event sum matches the paid amount from the start.
func NewObligation(src ObligationSource) (*Obligation, error) {
	if !src.Kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Obligation kind must be SALE, PURCHASE, EXPENSE or PAYROLL")
	}
	externalID := strings.TrimSpace(src.ExternalID)
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External record id cannot be empty")
	}
	if len(externalID) > 100 {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External record id cannot exceed 100 characters")
	}
	if src.OccurredOn.IsZero() {
		return nil, shared.NewDomainError("INVALID_DATE", "Occurred-on date is required")
	}
	if src.TotalAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Total amount cannot be negative")
	}
	if !src.TotalAmount.HasCurrencyScale() {
		return nil, ErrAmountPrecision
	}
	label := strings.TrimSpace(src.CounterpartyLabel)
	if len(label) > 200 {
		return nil, shared.NewDomainError("INVALID_COUNTERPARTY", "Counterparty label cannot exceed 200 characters")
	}

	o := &Obligation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Kind:              src.Kind,
		ExternalID:        externalID,
		Reference:         strings.TrimSpace(src.Reference),
		OccurredOn:        CalendarDate(src.OccurredOn),
		CounterpartyLabel: label,
		totalAmount:       src.TotalAmount,
		paidAmount:        valueobject.Zero(),
	}
	o.status = ResolveStatus(o.totalAmount, o.paidAmount)

	o.AddDomainEvent(NewObligationOpenedEvent(o))
	return o, nil
}

// ObligationState is the persisted form of an Obligation.
// Status is not part of it; RehydrateObligation recomputes it.
type ObligationState struct {
	ID                uuid.UUID
	Kind              ObligationKind
	ExternalID        string
	Reference         string
	OccurredOn        time.Time
	TotalAmount       valueobject.Money
	PaidAmount        valueobject.Money
	CounterpartyLabel string
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RehydrateObligation rebuilds an Obligation from storage
func RehydrateObligation(s ObligationState) *Obligation {
	o := &Obligation{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        s.ID,
				CreatedAt: s.CreatedAt,
				UpdatedAt: s.UpdatedAt,
			},
			Version: s.Version,
		},
		Kind:              s.Kind,
		ExternalID:        s.ExternalID,
		Reference:         s.Reference,
		OccurredOn:        CalendarDate(s.OccurredOn),
		CounterpartyLabel: s.CounterpartyLabel,
		totalAmount:       s.TotalAmount,
		paidAmount:        s.PaidAmount,
	}
	o.status = ResolveStatus(o.totalAmount, o.paidAmount)
	return o
}

// State returns the persisted form of the obligation
func (o *Obligation) State() ObligationState {
	return ObligationState{
		ID:                o.ID,
		Kind:              o.Kind,
		ExternalID:        o.ExternalID,
		Reference:         o.Reference,
		OccurredOn:        o.OccurredOn,
		TotalAmount:       o.totalAmount,
		PaidAmount:        o.paidAmount,
		CounterpartyLabel: o.CounterpartyLabel,
		Version:           o.Version,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// ApplyPayment adds a ledger payment to the paid amount and re-derives the status.
// Overpayment is accepted; it keeps the status at PAID and is flagged by IsOverpaid.
func (o *Obligation) ApplyPayment(event *PaymentEvent) error {
	if event == nil {
		return ErrInvalidAmount
	}
	if err := ValidatePaymentAmount(event.Amount); err != nil {
		return err
	}
	if event.ObligationID != o.ID {
		return shared.NewDomainError("PAYMENT_OBLIGATION_MISMATCH", "Payment belongs to a different obligation")
	}

	previous := o.status

	o.paidAmount = o.paidAmount.Add(event.Amount)
	o.status = ResolveStatus(o.totalAmount, o.paidAmount)
	o.UpdatedAt = time.Now().UTC()
	o.IncrementVersion()

	o.AddDomainEvent(NewPaymentRegisteredEvent(o, event, previous))
	if previous != PaymentStatusPaid && o.status == PaymentStatusPaid {
		o.AddDomainEvent(NewObligationSettledEvent(o))
	}
	if o.IsOverpaid() {
		o.AddDomainEvent(NewObligationOverpaidEvent(o, event))
	}
	return nil
}

// TotalAmount returns the immutable total
func (o *Obligation) TotalAmount() valueobject.Money {
	return o.totalAmount
}

// PaidAmount returns the running sum of applied payments
func (o *Obligation) PaidAmount() valueobject.Money {
	return o.paidAmount
}

// Status returns the derived payment status
func (o *Obligation) Status() PaymentStatus {
	return o.status
}

// OutstandingAmount returns total - paid. It is negative when the obligation is overpaid.
func (o *Obligation) OutstandingAmount() valueobject.Money {
	return o.totalAmount.Subtract(o.paidAmount)
}

// IsOverpaid reports paid > total
func (o *Obligation) IsOverpaid() bool {
	return o.paidAmount.GreaterThan(o.totalAmount)
}

// OverpaidAmount returns the credit owed back, zero unless overpaid
func (o *Obligation) OverpaidAmount() valueobject.Money {
	if !o.IsOverpaid() {
		return valueobject.Zero()
	}
	return o.paidAmount.Subtract(o.totalAmount)
}

// IsDue reports whether money is still expected
func (o *Obligation) IsDue() bool {
	return o.status.IsDue()
}
