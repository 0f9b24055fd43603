// Package report holds read models handed to rendering and printing layers.
package report

import (
	"strings"
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// FilterAll is the wildcard accepted for kind and status filters
const FilterAll = "ALL"

// DuesFilter selects the obligations of a dues report
type DuesFilter struct {
	Kind   *finance.ObligationKind // nil means all kinds
	Month  finance.Month
	Status *finance.PaymentStatus // nil means all statuses
}

// ParseDuesFilter parses user-facing filter values. Empty or "all" kind/status mean no restriction.
func ParseDuesFilter(kind, month, status string) (DuesFilter, error) {
	var f DuesFilter

	m, err := finance.ParseMonth(month)
	if err != nil {
		return f, err
	}
	f.Month = m

	if kind != "" && !isAll(kind) {
		k, err := finance.ParseObligationKind(kind)
		if err != nil {
			return f, err
		}
		f.Kind = &k
	}
	if status != "" && !isAll(status) {
		s, err := finance.ParsePaymentStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = &s
	}
	return f, nil
}

// Matches reports whether o belongs in a report for this filter
func (f DuesFilter) Matches(o *finance.Obligation) bool {
	if f.Kind != nil && o.Kind != *f.Kind {
		return false
	}
	if f.Status != nil && o.Status() != *f.Status {
		return false
	}
	return f.Month.Contains(o.OccurredOn)
}

// ObligationFilter converts the report filter into a repository query
func (f DuesFilter) ObligationFilter() finance.ObligationFilter {
	return finance.ObligationFilter{
		Kind:   f.Kind,
		Status: f.Status,
	}.ForMonth(f.Month)
}

// KindLabel returns the kind filter as printed on the report
func (f DuesFilter) KindLabel() string {
	if f.Kind == nil {
		return FilterAll
	}
	return f.Kind.String()
}

// StatusLabel returns the status filter as printed on the report
func (f DuesFilter) StatusLabel() string {
	if f.Status == nil {
		return FilterAll
	}
	return f.Status.String()
}

// DuesLineItem is one obligation on a dues report
type DuesLineItem struct {
	ObligationID      uuid.UUID              `json:"obligation_id"`
	Kind              finance.ObligationKind `json:"kind"`
	Reference         string                 `json:"reference,omitempty"`
	CounterpartyLabel string                 `json:"counterparty_label"`
	OccurredOn        time.Time              `json:"occurred_on"`
	TotalAmount       valueobject.Money      `json:"total_amount"`
	PaidAmount        valueobject.Money      `json:"paid_amount"`
	OutstandingAmount valueobject.Money      `json:"outstanding_amount"` // negative when overpaid
	Status            finance.PaymentStatus  `json:"status"`
	Overpaid          bool                   `json:"overpaid"`
	OverpaidAmount    valueobject.Money      `json:"overpaid_amount"`
}

// DuesTotals sums the line items of a report
type DuesTotals struct {
	TotalAmount       valueobject.Money `json:"total_amount"`
	PaidAmount        valueobject.Money `json:"paid_amount"`
	OutstandingAmount valueobject.Money `json:"outstanding_amount"`
	OverpaidAmount    valueobject.Money `json:"overpaid_amount"`
	OverpaidCount     int               `json:"overpaid_count"`
	DueCount          int               `json:"due_count"` // unpaid + partial
	LineCount         int               `json:"line_count"`
}

// StatusCounts is the per-status breakdown of a report
type StatusCounts struct {
	Unpaid  int `json:"unpaid"`
	Partial int `json:"partial"`
	Paid    int `json:"paid"`
}

// KindSubtotal holds totals for one obligation kind
type KindSubtotal struct {
	Kind   finance.ObligationKind `json:"kind"`
	Totals DuesTotals             `json:"totals"`
}

// DuesReport is the month-scoped dues report consumed by renderers
type DuesReport struct {
	Kind          string         `json:"kind"`
	Month         string         `json:"month"`
	Status        string         `json:"status"`
	PeriodStart   time.Time      `json:"period_start"`
	PeriodEnd     time.Time      `json:"period_end"` // exclusive
	CurrencyCode  string         `json:"currency_code"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Lines         []DuesLineItem `json:"lines"`
	Totals        DuesTotals     `json:"totals"`
	StatusCounts  StatusCounts   `json:"status_counts"`
	KindSubtotals []KindSubtotal `json:"kind_subtotals"`
}

// IsEmpty reports whether no obligation matched
func (r *DuesReport) IsEmpty() bool {
	return len(r.Lines) == 0
}

func newDuesTotals() DuesTotals {
	return DuesTotals{
		TotalAmount:       valueobject.Zero(),
		PaidAmount:        valueobject.Zero(),
		OutstandingAmount: valueobject.Zero(),
		OverpaidAmount:    valueobject.Zero(),
	}
}

func (t *DuesTotals) add(line DuesLineItem) {
	t.TotalAmount = t.TotalAmount.Add(line.TotalAmount)
	t.PaidAmount = t.PaidAmount.Add(line.PaidAmount)
	t.OutstandingAmount = t.OutstandingAmount.Add(line.OutstandingAmount)
	t.OverpaidAmount = t.OverpaidAmount.Add(line.OverpaidAmount)
	if line.Overpaid {
		t.OverpaidCount++
	}
	if line.Status.IsDue() {
		t.DueCount++
	}
	t.LineCount++
}

func (c *StatusCounts) add(status finance.PaymentStatus) {
	switch status {
	case finance.PaymentStatusUnpaid:
		c.Unpaid++
	case finance.PaymentStatusPartial:
		c.Partial++
	case finance.PaymentStatusPaid:
		c.Paid++
	}
}

func isAll(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), FilterAll) || s == "*"
}
