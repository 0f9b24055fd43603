package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/report"
	"github.com/erp/dues/internal/infrastructure/logger"
	"github.com/erp/dues/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReportFilter is the user-facing report selection.
// Kind and Status accept a value or ALL; Month is YYYY-MM.
type ReportFilter struct {
	Kind   string `json:"kind"`
	Month  string `json:"month"`
	Status string `json:"status"`
}

// ReportArchive stores rendered reports for the printing layer
type ReportArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

// ExportResult describes an archived report
type ExportResult struct {
	Key         string             `json:"key"`
	DownloadURL string             `json:"download_url"`
	Report      *report.DuesReport `json:"report"`
}

// DuesReportService builds dues reports from persisted obligations.
// It only reads; reports may miss a payment committed while the query runs.
type DuesReportService struct {
	obligations finance.ObligationRepository
	builder     *report.DuesReportBuilder
	archive     ReportArchive
	metrics     *telemetry.ReconciliationMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a DuesReportService
type Option func(*DuesReportService)

// WithArchive enables ExportReport
func WithArchive(a ReportArchive) Option {
	return func(s *DuesReportService) { s.archive = a }
}

// WithMetrics records built reports
func WithMetrics(m *telemetry.ReconciliationMetrics) Option {
	return func(s *DuesReportService) { s.metrics = m }
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *DuesReportService) { s.logger = l }
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *DuesReportService) { s.now = now }
}

// NewDuesReportService creates a new DuesReportService
func NewDuesReportService(obligations finance.ObligationRepository, currencyCode string, opts ...Option) *DuesReportService {
	s := &DuesReportService{
		obligations: obligations,
		builder:     report.NewDuesReportBuilder(currencyCode),
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildReport returns the dues report for the filter
func (s *DuesReportService) BuildReport(ctx context.Context, filter ReportFilter) (*report.DuesReport, error) {
	started := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "build_dues_report")
	defer span.End()
	defer s.metrics.RecordDuration(ctx, "build_report", started)

	dues, err := report.ParseDuesFilter(filter.Kind, filter.Month, filter.Status)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReportMonth, dues.Month.String(),
		telemetry.SpanAttrReportKind, dues.KindLabel(),
		telemetry.SpanAttrReportStatus, dues.StatusLabel(),
	)

	obligations, err := s.obligations.FindAll(ctx, dues.ObligationFilter())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load obligations: %w", err)
	}

	result := s.builder.Build(dues, obligations, s.now())
	telemetry.SetAttribute(span, telemetry.SpanAttrLineCount, len(result.Lines))
	s.metrics.RecordReportBuilt(ctx, result.Kind, len(result.Lines))

	logger.L(ctx, s.logger).Debug("Dues report built",
		zap.String("month", result.Month),
		zap.String("kind", result.Kind),
		zap.String("status", result.Status),
		zap.Int("lines", len(result.Lines)),
		zap.String("outstanding", result.Totals.OutstandingAmount.String()),
	)
	return result, nil
}

// ExportReport builds the report and stores it as JSON in the archive
func (s *DuesReportService) ExportReport(ctx context.Context, filter ReportFilter) (*ExportResult, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}

	result, err := s.BuildReport(ctx, filter)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "report", "export_dues_report")
	defer span.End()

	body, err := json.Marshal(result)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("encode report: %w", err)
	}

	key := ArchiveKey(result)
	if err := s.archive.Put(ctx, key, body, "application/json"); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("archive report: %w", err)
	}
	url, err := s.archive.DownloadURL(ctx, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("presign report: %w", err)
	}
	telemetry.AddEvent(span, "report.archived", "report.key", key, "report.bytes", len(body))

	logger.L(ctx, s.logger).Info("Dues report exported",
		zap.String("key", key),
		zap.Int("bytes", len(body)),
		zap.Int("lines", len(result.Lines)),
	)
	return &ExportResult{Key: key, DownloadURL: url, Report: result}, nil
}

// ArchiveKey names an archived report, e.g. 2026-03/dues-sale-all-20260401T080000Z.json
func ArchiveKey(r *report.DuesReport) string {
	return fmt.Sprintf("%s/dues-%s-%s-%s.json",
		r.Month,
		strings.ToLower(r.Kind),
		strings.ToLower(r.Status),
		r.GeneratedAt.UTC().Format("20060102T150405Z"),
	)
}
