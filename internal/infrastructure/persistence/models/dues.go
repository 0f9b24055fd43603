package models

import (
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ObligationModel is the persistence model for the Obligation aggregate root.
// Status is stored for indexed filtering only; it is recomputed on load.
type ObligationModel struct {
	AggregateModel
	Kind              string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_obligation_kind_external,priority:1;index:idx_obligation_kind_occurred,priority:1"`
	ExternalID        string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_obligation_kind_external,priority:2"`
	Reference         string          `gorm:"type:varchar(100)"`
	OccurredOn        time.Time       `gorm:"type:date;not null;index:idx_obligation_kind_occurred,priority:2"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaidAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Status            string          `gorm:"type:varchar(20);not null;index"`
	CounterpartyLabel string          `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (ObligationModel) TableName() string {
	return "obligations"
}

// ToDomain converts the persistence model to a domain Obligation
func (m *ObligationModel) ToDomain() *finance.Obligation {
	return finance.RehydrateObligation(finance.ObligationState{
		ID:                m.ID,
		Kind:              finance.ObligationKind(m.Kind),
		ExternalID:        m.ExternalID,
		Reference:         m.Reference,
		OccurredOn:        m.OccurredOn,
		TotalAmount:       valueobject.NewMoney(m.TotalAmount),
		PaidAmount:        valueobject.NewMoney(m.PaidAmount),
		CounterpartyLabel: m.CounterpartyLabel,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	})
}

// ObligationModelFromDomain creates a persistence model from a domain Obligation
func ObligationModelFromDomain(o *finance.Obligation) *ObligationModel {
	s := o.State()
	m := &ObligationModel{
		Kind:              string(s.Kind),
		ExternalID:        s.ExternalID,
		Reference:         s.Reference,
		OccurredOn:        s.OccurredOn,
		TotalAmount:       s.TotalAmount.Amount(),
		PaidAmount:        s.PaidAmount.Amount(),
		Status:            string(o.Status()),
		CounterpartyLabel: s.CounterpartyLabel,
	}
	m.ID = s.ID
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	m.Version = s.Version
	return m
}

// PaymentEventModel is the persistence model for the append-only PaymentEvent.
// IdempotencyKey is nil when the caller supplied none so that the unique index ignores it.
type PaymentEventModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	ObligationID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_payment_event_obligation_seq,priority:1"`
	Sequence        int             `gorm:"not null;uniqueIndex:idx_payment_event_obligation_seq,priority:2"`
	PaymentNumber   string          `gorm:"type:varchar(50);not null;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Method          string          `gorm:"type:varchar(50);not null"`
	ReferenceNumber string          `gorm:"type:varchar(100)"`
	Note            string          `gorm:"type:text"`
	IdempotencyKey  *string         `gorm:"type:varchar(128);uniqueIndex"`
	OccurredAt      time.Time       `gorm:"not null"`
	RecordedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentEventModel) TableName() string {
	return "payment_events"
}

// ToDomain converts the persistence model to a domain PaymentEvent
func (m *PaymentEventModel) ToDomain() *finance.PaymentEvent {
	key := ""
	if m.IdempotencyKey != nil {
		key = *m.IdempotencyKey
	}
	return &finance.PaymentEvent{
		ID:              m.ID,
		ObligationID:    m.ObligationID,
		Sequence:        m.Sequence,
		PaymentNumber:   m.PaymentNumber,
		Amount:          valueobject.NewMoney(m.Amount),
		Method:          finance.PaymentMethod(m.Method),
		ReferenceNumber: m.ReferenceNumber,
		Note:            m.Note,
		IdempotencyKey:  key,
		OccurredAt:      m.OccurredAt.UTC(),
		RecordedAt:      m.RecordedAt.UTC(),
	}
}

// PaymentEventModelFromDomain creates a persistence model from a domain PaymentEvent
func PaymentEventModelFromDomain(e *finance.PaymentEvent) *PaymentEventModel {
	var key *string
	if e.IdempotencyKey != "" {
		k := e.IdempotencyKey
		key = &k
	}
	return &PaymentEventModel{
		ID:              e.ID,
		ObligationID:    e.ObligationID,
		Sequence:        e.Sequence,
		PaymentNumber:   e.PaymentNumber,
		Amount:          e.Amount.Amount(),
		Method:          string(e.Method),
		ReferenceNumber: e.ReferenceNumber,
		Note:            e.Note,
		IdempotencyKey:  key,
		OccurredAt:      e.OccurredAt,
		RecordedAt:      e.RecordedAt,
	}
}

// All returns every model managed by the dues engine, in dependency order
func All() []any {
	return []any{
		&ObligationModel{},
		&PaymentEventModel{},
	}
}
