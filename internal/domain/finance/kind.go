package finance

import (
	"fmt"
	"strings"

	"github.com/erp/dues/internal/domain/shared"
)

// ObligationKind discriminates which owning domain record an Obligation wraps
type ObligationKind string

const (
	ObligationKindSale     ObligationKind = "SALE"
	ObligationKindPurchase ObligationKind = "PURCHASE"
	ObligationKindExpense  ObligationKind = "EXPENSE"
	ObligationKindPayroll  ObligationKind = "PAYROLL"
)

// AllObligationKinds returns every kind in report order
func AllObligationKinds() []ObligationKind {
	return []ObligationKind{
		ObligationKindSale,
		ObligationKindPurchase,
		ObligationKindExpense,
		ObligationKindPayroll,
	}
}

// IsValid checks if the kind is one of the four known kinds
func (k ObligationKind) IsValid() bool {
	switch k {
	case ObligationKindSale, ObligationKindPurchase, ObligationKindExpense, ObligationKindPayroll:
		return true
	}
	return false
}

// IsReceivable reports whether money flows in (sales). Purchases, expenses and payroll are payables.
func (k ObligationKind) IsReceivable() bool {
	return k == ObligationKindSale
}

// String returns the string representation
func (k ObligationKind) String() string {
	return string(k)
}

var kindAliases = map[string]ObligationKind{
	"SALE":      ObligationKindSale,
	"SALES":     ObligationKindSale,
	"PURCHASE":  ObligationKindPurchase,
	"PURCHASES": ObligationKindPurchase,
	"EXPENSE":   ObligationKindExpense,
	"EXPENSES":  ObligationKindExpense,
	"PAYROLL":   ObligationKindPayroll,
	"PAYROLLS":  ObligationKindPayroll,
}

// ParseObligationKind parses a kind case-insensitively. Plural table names ("sales") are accepted.
func ParseObligationKind(s string) (ObligationKind, error) {
	if k, ok := kindAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", shared.NewDomainError("INVALID_KIND", fmt.Sprintf("Unknown obligation kind %q", s))
}
