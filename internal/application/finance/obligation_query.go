package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/infrastructure/telemetry"
)

// Listing page sizes
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// ObligationListFilter is the user-facing obligation listing query.
// Kind and Status accept a value, ALL or empty. From and To are inclusive
// YYYY-MM-DD dates; either may be empty.
type ObligationListFilter struct {
	Kind     string `form:"kind" json:"kind"`
	Status   string `form:"status" json:"status"`
	From     string `form:"from" json:"from"`
	To       string `form:"to" json:"to"`
	Search   string `form:"search" json:"search" binding:"max=100"`
	Page     int    `form:"page" json:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" json:"page_size" binding:"omitempty,min=1,max=200"`
}

// ObligationPage is one page of a listing with the total match count
type ObligationPage struct {
	Obligations []*finance.Obligation
	Total       int64
	Page        int
	PageSize    int
}

// Query converts the listing into a repository filter with paging applied
func (f ObligationListFilter) Query() (finance.ObligationFilter, error) {
	var q finance.ObligationFilter

	if kind := strings.TrimSpace(f.Kind); kind != "" && !strings.EqualFold(kind, "ALL") {
		k, err := finance.ParseObligationKind(kind)
		if err != nil {
			return q, err
		}
		q.Kind = &k
	}
	if status := strings.TrimSpace(f.Status); status != "" && !strings.EqualFold(status, "ALL") {
		s, err := finance.ParsePaymentStatus(status)
		if err != nil {
			return q, err
		}
		q.Status = &s
	}
	if f.From != "" {
		from, err := parseListDate("from", f.From)
		if err != nil {
			return q, err
		}
		q.From = &from
	}
	if f.To != "" {
		to, err := parseListDate("to", f.To)
		if err != nil {
			return q, err
		}
		end := to.AddDate(0, 0, 1)
		q.To = &end
	}
	if q.From != nil && q.To != nil && !q.From.Before(*q.To) {
		return q, shared.NewDomainError("INVALID_DATE", "The from date must not be after the to date")
	}
	q.Search = strings.TrimSpace(f.Search)

	page, size := f.paging()
	q.Limit = size
	q.Offset = (page - 1) * size
	return q, nil
}

func (f ObligationListFilter) paging() (page, size int) {
	page, size = f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func parseListDate(field, raw string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, shared.NewDomainError("INVALID_DATE", fmt.Sprintf("The %s date must be formatted YYYY-MM-DD", field))
	}
	return d, nil
}

// ListObligations returns one page of obligations ordered by occurrence date, with the total match count
func (s *ReconciliationService) ListObligations(ctx context.Context, filter ObligationListFilter) (*ObligationPage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "list_obligations")
	defer span.End()

	query, err := filter.Query()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	obligations, err := s.obligations.FindAll(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	total, err := s.obligations.Count(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("count obligations: %w", err)
	}

	page, size := filter.paging()
	telemetry.SetAttributes(span, "list.total", total, "list.page", page)
	return &ObligationPage{Obligations: obligations, Total: total, Page: page, PageSize: size}, nil
}

// FindByExternalID returns the obligation wrapping an owning domain's record
func (s *ReconciliationService) FindByExternalID(ctx context.Context, kind finance.ObligationKind, externalID string) (*finance.Obligation, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External record id cannot be empty")
	}
	return s.obligations.FindByExternalID(ctx, kind, externalID)
}
