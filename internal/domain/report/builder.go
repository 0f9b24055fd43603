package report

import (
	"sort"
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared/valueobject"
)

// DuesReportBuilder turns obligations into a DuesReport. It performs no I/O.
type DuesReportBuilder struct {
	currencyCode string
}

// NewDuesReportBuilder creates a builder rendering amounts in currencyCode
func NewDuesReportBuilder(currencyCode string) *DuesReportBuilder {
	if currencyCode == "" {
		currencyCode = valueobject.DefaultCurrencyCode
	}
	return &DuesReportBuilder{currencyCode: currencyCode}
}

// Build selects the obligations matching filter and aggregates them.
// Lines are ordered by OccurredOn ascending, then ID ascending.
// Totals are sums over the lines; an empty selection gives zero totals.
// The obligations are only read.
func (b *DuesReportBuilder) Build(filter DuesFilter, obligations []*finance.Obligation, generatedAt time.Time) *DuesReport {
	lines := make([]DuesLineItem, 0, len(obligations))
	for _, o := range obligations {
		if o == nil || !filter.Matches(o) {
			continue
		}
		lines = append(lines, lineItemFor(o))
	}

	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if !a.OccurredOn.Equal(b.OccurredOn) {
			return a.OccurredOn.Before(b.OccurredOn)
		}
		return a.ObligationID.String() < b.ObligationID.String()
	})

	totals := newDuesTotals()
	var counts StatusCounts
	byKind := make(map[finance.ObligationKind]*DuesTotals)
	for _, line := range lines {
		totals.add(line)
		counts.add(line.Status)

		kt, ok := byKind[line.Kind]
		if !ok {
			t := newDuesTotals()
			kt = &t
			byKind[line.Kind] = kt
		}
		kt.add(line)
	}

	return &DuesReport{
		Kind:          filter.KindLabel(),
		Month:         filter.Month.String(),
		Status:        filter.StatusLabel(),
		PeriodStart:   filter.Month.Start(),
		PeriodEnd:     filter.Month.End(),
		CurrencyCode:  b.currencyCode,
		GeneratedAt:   generatedAt.UTC(),
		Lines:         lines,
		Totals:        totals,
		StatusCounts:  counts,
		KindSubtotals: kindSubtotals(filter, byKind),
	}
}

func lineItemFor(o *finance.Obligation) DuesLineItem {
	return DuesLineItem{
		ObligationID:      o.ID,
		Kind:              o.Kind,
		Reference:         o.Reference,
		CounterpartyLabel: o.CounterpartyLabel,
		OccurredOn:        o.OccurredOn,
		TotalAmount:       o.TotalAmount(),
		PaidAmount:        o.PaidAmount(),
		OutstandingAmount: o.OutstandingAmount(),
		Status:            o.Status(),
		Overpaid:          o.IsOverpaid(),
		OverpaidAmount:    o.OverpaidAmount(),
	}
}

// kindSubtotals lists every kind in scope in fixed order, including kinds without lines
func kindSubtotals(filter DuesFilter, byKind map[finance.ObligationKind]*DuesTotals) []KindSubtotal {
	kinds := finance.AllObligationKinds()
	if filter.Kind != nil {
		kinds = []finance.ObligationKind{*filter.Kind}
	}

	subtotals := make([]KindSubtotal, 0, len(kinds))
	for _, k := range kinds {
		totals := newDuesTotals()
		if t, ok := byKind[k]; ok {
			totals = *t
		}
		subtotals = append(subtotals, KindSubtotal{Kind: k, Totals: totals})
	}
	return subtotals
}
