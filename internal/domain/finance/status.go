package finance

import (
	"fmt"
	"strings"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
)

// PaymentStatus is the derived tri-state of an obligation.
// It is never set directly; it is always the result of ResolveStatus.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "UNPAID"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// AllPaymentStatuses returns the statuses in settlement order
func AllPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid}
}

// IsValid checks if the status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// Rank orders statuses by settlement progress: UNPAID < PARTIAL < PAID
func (s PaymentStatus) Rank() int {
	switch s {
	case PaymentStatusUnpaid:
		return 0
	case PaymentStatusPartial:
		return 1
	case PaymentStatusPaid:
		return 2
	}
	return -1
}

// IsDue reports whether money is still expected (UNPAID or PARTIAL)
func (s PaymentStatus) IsDue() bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPartial
}

// String returns the string representation
func (s PaymentStatus) String() string {
	return string(s)
}

// ParsePaymentStatus parses a status case-insensitively
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown payment status %q", s))
	}
	return status, nil
}

// ResolveStatus maps (total, paid) to a status.
//
//	total == 0         -> PAID (nothing can be owed)
//	paid == 0          -> UNPAID
//	0 < paid < total   -> PARTIAL
//	paid >= total      -> PAID, overpayment included
//
// Comparisons are exact decimal comparisons.
func ResolveStatus(total, paid valueobject.Money) PaymentStatus {
	if total.IsZero() {
		return PaymentStatusPaid
	}
	if !paid.IsPositive() {
		return PaymentStatusUnpaid
	}
	if paid.LessThan(total) {
		return PaymentStatusPartial
	}
	return PaymentStatusPaid
}
