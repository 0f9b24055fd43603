package handler

import (
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared/valueobject"
)

// ===================== Request DTOs =====================

// OpenObligationRequest represents a request to open an obligation for an owning record
// @Description Request body for opening an obligation
type OpenObligationRequest struct {
	Kind              string `json:"kind" binding:"required" example:"SALE"`
	ExternalID        string `json:"external_id" binding:"required,max=100" example:"SO-2026-00017"`
	Reference         string `json:"reference" binding:"max=100" example:"INV-00017"`
	OccurredOn        string `json:"occurred_on" binding:"required,datetime=2006-01-02" example:"2026-03-14"`
	TotalAmount       string `json:"total_amount" binding:"required,money" example:"1500.00"`
	CounterpartyLabel string `json:"counterparty_label" binding:"max=200" example:"Al Noor Trading"`
	InitiallyPaid     bool   `json:"initially_paid" example:"false"`
	PaymentMethod     string `json:"payment_method" binding:"max=50" example:"CASH"`
}

// RegisterPaymentRequest represents a request to register a payment
// @Description Request body for registering a payment against an obligation
type RegisterPaymentRequest struct {
	Amount          string     `json:"amount" binding:"required,money" example:"500.00"`
	Method          string     `json:"method" binding:"required,max=50" example:"MADA"`
	Note            string     `json:"note" binding:"max=500" example:"Second instalment"`
	ReferenceNumber string     `json:"reference_number" binding:"max=100" example:"TRX-99812"`
	OccurredAt      *time.Time `json:"occurred_at"`
	IdempotencyKey  string     `json:"idempotency_key" binding:"max=100" example:"pos-7-20260314-0042"`
}

// ===================== Response DTOs =====================

// ObligationResponse represents an obligation in API responses
// @Description Obligation response
type ObligationResponse struct {
	ID                string            `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Kind              string            `json:"kind" example:"SALE"`
	ExternalID        string            `json:"external_id" example:"SO-2026-00017"`
	Reference         string            `json:"reference,omitempty" example:"INV-00017"`
	CounterpartyLabel string            `json:"counterparty_label" example:"Al Noor Trading"`
	OccurredOn        string            `json:"occurred_on" example:"2026-03-14"`
	TotalAmount       valueobject.Money `json:"total_amount" swaggertype:"string" example:"1500.00"`
	PaidAmount        valueobject.Money `json:"paid_amount" swaggertype:"string" example:"500.00"`
	OutstandingAmount valueobject.Money `json:"outstanding_amount" swaggertype:"string" example:"1000.00"`
	Status            string            `json:"status" example:"PARTIAL"`
	Overpaid          bool              `json:"overpaid" example:"false"`
	OverpaidAmount    valueobject.Money `json:"overpaid_amount" swaggertype:"string" example:"0.00"`
	Version           int               `json:"version" example:"2"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// PaymentResponse represents a payment event in API responses
// @Description Payment event response
type PaymentResponse struct {
	ID              string            `json:"id" example:"550e8400-e29b-41d4-a716-446655440001"`
	ObligationID    string            `json:"obligation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Sequence        int               `json:"sequence" example:"1"`
	PaymentNumber   string            `json:"payment_number" example:"PAY-20260314-550E8400"`
	Amount          valueobject.Money `json:"amount" swaggertype:"string" example:"500.00"`
	Method          string            `json:"method" example:"MADA"`
	ReferenceNumber string            `json:"reference_number,omitempty" example:"TRX-99812"`
	Note            string            `json:"note,omitempty" example:"Second instalment"`
	IdempotencyKey  string            `json:"idempotency_key,omitempty" example:"pos-7-20260314-0042"`
	OccurredAt      time.Time         `json:"occurred_at"`
	RecordedAt      time.Time         `json:"recorded_at"`
}

// RegisterPaymentResponse is returned after a payment is accepted or replayed
// @Description Registered payment with the updated obligation
type RegisterPaymentResponse struct {
	Obligation ObligationResponse `json:"obligation"`
	Payment    PaymentResponse    `json:"payment"`
	Replayed   bool               `json:"replayed" example:"false"`
}

// PaymentHistoryResponse lists the payments of one obligation in acceptance order
// @Description Payment history response
type PaymentHistoryResponse struct {
	Obligation ObligationResponse `json:"obligation"`
	Payments   []PaymentResponse  `json:"payments"`
}

// IntegrityResponse reports the result of a ledger check
// @Description Ledger integrity check result
type IntegrityResponse struct {
	ObligationID string `json:"obligation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Consistent   bool   `json:"consistent" example:"true"`
}

// ===================== Conversion Functions =====================

func toObligationResponse(o *finance.Obligation) ObligationResponse {
	return ObligationResponse{
		ID:                o.ID.String(),
		Kind:              string(o.Kind),
		ExternalID:        o.ExternalID,
		Reference:         o.Reference,
		CounterpartyLabel: o.CounterpartyLabel,
		OccurredOn:        o.OccurredOn.Format("2006-01-02"),
		TotalAmount:       o.TotalAmount(),
		PaidAmount:        o.PaidAmount(),
		OutstandingAmount: o.OutstandingAmount(),
		Status:            string(o.Status()),
		Overpaid:          o.IsOverpaid(),
		OverpaidAmount:    o.OverpaidAmount(),
		Version:           o.Version,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toPaymentResponse(e *finance.PaymentEvent) PaymentResponse {
	return PaymentResponse{
		ID:              e.ID.String(),
		ObligationID:    e.ObligationID.String(),
		Sequence:        e.Sequence,
		PaymentNumber:   e.PaymentNumber,
		Amount:          e.Amount,
		Method:          string(e.Method),
		ReferenceNumber: e.ReferenceNumber,
		Note:            e.Note,
		IdempotencyKey:  e.IdempotencyKey,
		OccurredAt:      e.OccurredAt,
		RecordedAt:      e.RecordedAt,
	}
}

func toObligationResponses(obligations []*finance.Obligation) []ObligationResponse {
	out := make([]ObligationResponse, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, toObligationResponse(o))
	}
	return out
}

func toPaymentResponses(events []*finance.PaymentEvent) []PaymentResponse {
	out := make([]PaymentResponse, len(events))
	for i, e := range events {
		out[i] = toPaymentResponse(e)
	}
	return out
}
