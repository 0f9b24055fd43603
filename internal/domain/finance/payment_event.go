package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PaymentMethod is an opaque label describing how money moved
type PaymentMethod string

// Labels used by the point-of-sale and bookkeeping screens. Other labels are accepted as-is.
const (
	PaymentMethodCash       PaymentMethod = "CASH"
	PaymentMethodMada       PaymentMethod = "MADA"
	PaymentMethodVisa       PaymentMethod = "VISA"
	PaymentMethodMastercard PaymentMethod = "MASTERCARD"
	PaymentMethodBank       PaymentMethod = "BANK"
	PaymentMethodCheck      PaymentMethod = "CHECK"
	PaymentMethodCredit     PaymentMethod = "CREDIT"
)

// KnownPaymentMethods returns the predefined labels
func KnownPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCash,
		PaymentMethodMada,
		PaymentMethodVisa,
		PaymentMethodMastercard,
		PaymentMethodBank,
		PaymentMethodCheck,
		PaymentMethodCredit,
	}
}

// ParsePaymentMethod normalises a label to upper case. Empty labels are rejected.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	if label == "" {
		return "", shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is required")
	}
	if len(label) > 50 {
		return "", shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method cannot exceed 50 characters")
	}
	return PaymentMethod(label), nil
}

// PaymentEvent is one append-only record of money applied against an Obligation.
// Events are never updated or deleted.
type PaymentEvent struct {
	ID              uuid.UUID
	ObligationID    uuid.UUID
	Sequence        int
	PaymentNumber   string
	Amount          valueobject.Money
	Method          PaymentMethod
	ReferenceNumber string
	Note            string
	IdempotencyKey  string
	OccurredAt      time.Time
	RecordedAt      time.Time
}

// GeneratePaymentNumber builds PAY-YYYYMMDD-XXXXXXXX from the recording date and event id
func GeneratePaymentNumber(id uuid.UUID, recordedAt time.Time) string {
	return fmt.Sprintf("PAY-%s-%s", recordedAt.UTC().Format("20060102"), strings.ToUpper(id.String()[:8]))
}

func newPaymentEvent(obligationID uuid.UUID, sequence int, in AppendEventInput, now time.Time) (*PaymentEvent, error) {
	if err := ValidatePaymentAmount(in.Amount); err != nil {
		return nil, err
	}
	method, err := ParsePaymentMethod(string(in.Method))
	if err != nil {
		return nil, err
	}
	if sequence < 1 {
		return nil, shared.NewDomainError("INVALID_SEQUENCE", "Payment sequence must start at 1")
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	id := uuid.New()
	return &PaymentEvent{
		ID:              id,
		ObligationID:    obligationID,
		Sequence:        sequence,
		PaymentNumber:   GeneratePaymentNumber(id, now),
		Amount:          in.Amount,
		Method:          method,
		ReferenceNumber: strings.TrimSpace(in.ReferenceNumber),
		Note:            strings.TrimSpace(in.Note),
		IdempotencyKey:  strings.TrimSpace(in.IdempotencyKey),
		OccurredAt:      occurredAt.UTC(),
		RecordedAt:      now.UTC(),
	}, nil
}
