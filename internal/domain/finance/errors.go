package finance

import (
	"fmt"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Reconciliation error kinds. Callers match them with errors.Is.
var (
	ErrObligationNotFound  = shared.NewDomainError("NOT_FOUND", "Obligation not found")
	ErrInvalidAmount       = shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be greater than zero")
	ErrAmountPrecision     = shared.NewDomainError("INVALID_AMOUNT", "Amount cannot have more than two decimal places")
	ErrObligationCancelled = shared.NewDomainError("OBLIGATION_CANCELLED", "The underlying record is cancelled and cannot receive payments")
	ErrIntegrityMismatch   = shared.NewDomainError("INTEGRITY_MISMATCH", "Payment ledger disagrees with stored paid amount")
	ErrPaymentNotFound     = shared.NewDomainError("NOT_FOUND", "Payment not found")
)

// ValidatePaymentAmount accepts strictly positive amounts expressed in whole minor units.
// Both failures carry the INVALID_AMOUNT code.
func ValidatePaymentAmount(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.HasCurrencyScale() {
		return ErrAmountPrecision
	}
	return nil
}

// NewObligationNotFoundError names the missing obligation in the message
func NewObligationNotFoundError(id uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(ErrObligationNotFound.Code, fmt.Sprintf("Obligation %s not found", id))
}

// IntegrityMismatchError reports that the sum of payment events for an
// obligation differs from its stored paid amount. It signals a bug or data
// corruption and is never corrected automatically.
type IntegrityMismatchError struct {
	ObligationID uuid.UUID
	StoredPaid   valueobject.Money
	LedgerSum    valueobject.Money
}

// Error implements the error interface
func (e *IntegrityMismatchError) Error() string {
	return fmt.Sprintf("ledger integrity mismatch for obligation %s: stored paid %s, ledger sum %s",
		e.ObligationID, e.StoredPaid, e.LedgerSum)
}

// Is makes errors.Is(err, ErrIntegrityMismatch) true
func (e *IntegrityMismatchError) Is(target error) bool {
	return target == ErrIntegrityMismatch
}

// Difference returns LedgerSum - StoredPaid
func (e *IntegrityMismatchError) Difference() valueobject.Money {
	return e.LedgerSum.Subtract(e.StoredPaid)
}
