package finance

import (
	"time"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Event type names
const (
	EventTypeObligationOpened        = "ObligationOpened"
	EventTypePaymentRegistered       = "PaymentRegistered"
	EventTypeObligationSettled       = "ObligationSettled"
	EventTypeObligationOverpaid      = "ObligationOverpaid"
	EventTypeLedgerIntegrityViolated = "LedgerIntegrityViolated"
)

// ObligationOpenedEvent is raised when an owning domain registers a new obligation
type ObligationOpenedEvent struct {
	shared.BaseDomainEvent
	ObligationID      uuid.UUID         `json:"obligation_id"`
	Kind              ObligationKind    `json:"kind"`
	ExternalID        string            `json:"external_id"`
	CounterpartyLabel string            `json:"counterparty_label"`
	OccurredOn        time.Time         `json:"occurred_on"`
	TotalAmount       valueobject.Money `json:"total_amount"`
}

// NewObligationOpenedEvent creates a new ObligationOpenedEvent
func NewObligationOpenedEvent(o *Obligation) *ObligationOpenedEvent {
	return &ObligationOpenedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeObligationOpened, AggregateTypeObligation, o.ID),
		ObligationID:      o.ID,
		Kind:              o.Kind,
		ExternalID:        o.ExternalID,
		CounterpartyLabel: o.CounterpartyLabel,
		OccurredOn:        o.OccurredOn,
		TotalAmount:       o.totalAmount,
	}
}

// PaymentRegisteredEvent is raised for every payment applied to an obligation
type PaymentRegisteredEvent struct {
	shared.BaseDomainEvent
	ObligationID   uuid.UUID         `json:"obligation_id"`
	Kind           ObligationKind    `json:"kind"`
	PaymentID      uuid.UUID         `json:"payment_id"`
	PaymentNumber  string            `json:"payment_number"`
	Amount         valueobject.Money `json:"amount"`
	Method         PaymentMethod     `json:"method"`
	PaidAmount     valueobject.Money `json:"paid_amount"`
	PreviousStatus PaymentStatus     `json:"previous_status"`
	Status         PaymentStatus     `json:"status"`
}

// NewPaymentRegisteredEvent creates a new PaymentRegisteredEvent
func NewPaymentRegisteredEvent(o *Obligation, p *PaymentEvent, previous PaymentStatus) *PaymentRegisteredEvent {
	return &PaymentRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRegistered, AggregateTypeObligation, o.ID),
		ObligationID:    o.ID,
		Kind:            o.Kind,
		PaymentID:       p.ID,
		PaymentNumber:   p.PaymentNumber,
		Amount:          p.Amount,
		Method:          p.Method,
		PaidAmount:      o.paidAmount,
		PreviousStatus:  previous,
		Status:          o.status,
	}
}

// ObligationSettledEvent is raised when an obligation reaches PAID
type ObligationSettledEvent struct {
	shared.BaseDomainEvent
	ObligationID uuid.UUID         `json:"obligation_id"`
	Kind         ObligationKind    `json:"kind"`
	TotalAmount  valueobject.Money `json:"total_amount"`
	PaidAmount   valueobject.Money `json:"paid_amount"`
}

// NewObligationSettledEvent creates a new ObligationSettledEvent
func NewObligationSettledEvent(o *Obligation) *ObligationSettledEvent {
	return &ObligationSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationSettled, AggregateTypeObligation, o.ID),
		ObligationID:    o.ID,
		Kind:            o.Kind,
		TotalAmount:     o.totalAmount,
		PaidAmount:      o.paidAmount,
	}
}

// ObligationOverpaidEvent is raised when a payment leaves paid above total.
// A refund or credit is owed to the counterparty.
type ObligationOverpaidEvent struct {
	shared.BaseDomainEvent
	ObligationID   uuid.UUID         `json:"obligation_id"`
	Kind           ObligationKind    `json:"kind"`
	PaymentID      uuid.UUID         `json:"payment_id"`
	OverpaidAmount valueobject.Money `json:"overpaid_amount"`
}

// NewObligationOverpaidEvent creates a new ObligationOverpaidEvent
func NewObligationOverpaidEvent(o *Obligation, p *PaymentEvent) *ObligationOverpaidEvent {
	return &ObligationOverpaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationOverpaid, AggregateTypeObligation, o.ID),
		ObligationID:    o.ID,
		Kind:            o.Kind,
		PaymentID:       p.ID,
		OverpaidAmount:  o.OverpaidAmount(),
	}
}

// LedgerIntegrityViolatedEvent is raised when the ledger sum and stored paid amount disagree
type LedgerIntegrityViolatedEvent struct {
	shared.BaseDomainEvent
	ObligationID uuid.UUID         `json:"obligation_id"`
	StoredPaid   valueobject.Money `json:"stored_paid"`
	LedgerSum    valueobject.Money `json:"ledger_sum"`
}

// NewLedgerIntegrityViolatedEvent creates a new LedgerIntegrityViolatedEvent
func NewLedgerIntegrityViolatedEvent(mismatch *IntegrityMismatchError) *LedgerIntegrityViolatedEvent {
	return &LedgerIntegrityViolatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerIntegrityViolated, AggregateTypeObligation, mismatch.ObligationID),
		ObligationID:    mismatch.ObligationID,
		StoredPaid:      mismatch.StoredPaid,
		LedgerSum:       mismatch.LedgerSum,
	}
}
