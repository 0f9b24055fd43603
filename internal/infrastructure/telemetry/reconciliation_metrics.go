package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for reconciliation metrics.
const MeterName = "dues-engine/reconciliation"

// ReconciliationMetrics records payment registration and reporting activity.
type ReconciliationMetrics struct {
	paymentsRegistered  *Counter
	paymentsReplayed    *Counter
	paymentsRejected    *Counter
	paymentAmount       *Histogram
	integrityMismatches *Counter
	obligationsSettled  *Counter
	obligationsOpened   *Counter
	reportsBuilt        *Counter
	operationDuration   *Histogram
}

// NewReconciliationMetrics creates all reconciliation instruments on meter.
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	var err error
	m := &ReconciliationMetrics{}

	if m.paymentsRegistered, err = NewCounter(meter, "dues_payments_registered_total",
		"Payments appended to the ledger", "{payment}"); err != nil {
		return nil, err
	}
	if m.paymentsReplayed, err = NewCounter(meter, "dues_payments_replayed_total",
		"Payment requests answered from an earlier idempotent registration", "{payment}"); err != nil {
		return nil, err
	}
	if m.paymentsRejected, err = NewCounter(meter, "dues_payments_rejected_total",
		"Payment requests rejected before reaching the ledger", "{payment}"); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "dues_payment_amount",
		Description: "Amount of registered payments",
		Unit:        "{currency}",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.integrityMismatches, err = NewCounter(meter, "dues_integrity_mismatches_total",
		"Obligations whose paid amount disagrees with the ledger sum", "{obligation}"); err != nil {
		return nil, err
	}
	if m.obligationsSettled, err = NewCounter(meter, "dues_obligations_settled_total",
		"Obligations that reached PAID", "{obligation}"); err != nil {
		return nil, err
	}
	if m.obligationsOpened, err = NewCounter(meter, "dues_obligations_opened_total",
		"Obligations opened", "{obligation}"); err != nil {
		return nil, err
	}
	if m.reportsBuilt, err = NewCounter(meter, "dues_reports_built_total",
		"Dues reports generated", "{report}"); err != nil {
		return nil, err
	}
	if m.operationDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "dues_operation_duration_seconds",
		Description: "Duration of reconciliation operations",
		Unit:        "s",
		Boundaries:  OperationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPaymentRegistered counts a payment and records its amount.
func (m *ReconciliationMetrics) RecordPaymentRegistered(ctx context.Context, kind, method string, amount float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrObligationKind.String(kind), AttrPaymentMethod.String(method)}
	m.paymentsRegistered.Inc(ctx, attrs...)
	m.paymentAmount.Record(ctx, amount, attrs...)
}

// RecordPaymentReplayed counts an idempotent replay.
func (m *ReconciliationMetrics) RecordPaymentReplayed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.paymentsReplayed.Inc(ctx, AttrObligationKind.String(kind))
}

// RecordPaymentRejected counts a rejected payment by error code.
func (m *ReconciliationMetrics) RecordPaymentRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.paymentsRejected.Inc(ctx, AttrRejectReason.String(reason))
}

// RecordIntegrityMismatch counts a failed ledger verification.
func (m *ReconciliationMetrics) RecordIntegrityMismatch(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.integrityMismatches.Inc(ctx, AttrObligationKind.String(kind))
}

// RecordObligationOpened counts a newly opened obligation.
func (m *ReconciliationMetrics) RecordObligationOpened(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.obligationsOpened.Inc(ctx, AttrObligationKind.String(kind), AttrPaymentStatus.String(status))
}

// RecordObligationSettled counts an obligation reaching PAID.
func (m *ReconciliationMetrics) RecordObligationSettled(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.obligationsSettled.Inc(ctx, AttrObligationKind.String(kind))
}

// RecordReportBuilt counts a generated report.
func (m *ReconciliationMetrics) RecordReportBuilt(ctx context.Context, kind string, lines int) {
	if m == nil {
		return
	}
	m.reportsBuilt.Inc(ctx, AttrReportKind.String(kind), attribute.Int("report.lines", lines))
}

// RecordDuration records how long an operation took.
func (m *ReconciliationMetrics) RecordDuration(ctx context.Context, operation string, started time.Time) {
	if m == nil {
		return
	}
	m.operationDuration.RecordDuration(ctx, time.Since(started), attribute.String("operation", operation))
}
