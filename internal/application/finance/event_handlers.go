package finance

import (
	"context"
	"fmt"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SettlementHandler handles ObligationSettledEvent and ObligationOverpaidEvent.
// Settlements are counted; overpayments are logged so a refund or credit can be raised.
type SettlementHandler struct {
	metrics *telemetry.ReconciliationMetrics
	logger  *zap.Logger
}

// NewSettlementHandler creates a new handler for settlement events
func NewSettlementHandler(metrics *telemetry.ReconciliationMetrics, logger *zap.Logger) *SettlementHandler {
	return &SettlementHandler{
		metrics: metrics,
		logger:  logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *SettlementHandler) EventTypes() []string {
	return []string{finance.EventTypeObligationSettled, finance.EventTypeObligationOverpaid}
}

// Handle processes a settlement event
func (h *SettlementHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *finance.ObligationSettledEvent:
		h.metrics.RecordObligationSettled(ctx, string(e.Kind))
		h.logger.Info("obligation settled",
			zap.String("obligation_id", e.ObligationID.String()),
			zap.String("kind", string(e.Kind)),
			zap.String("total_amount", e.TotalAmount.String()),
			zap.String("paid_amount", e.PaidAmount.String()),
		)
		return nil
	case *finance.ObligationOverpaidEvent:
		h.logger.Warn("obligation overpaid, credit owed to counterparty",
			zap.String("obligation_id", e.ObligationID.String()),
			zap.String("kind", string(e.Kind)),
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("overpaid_amount", e.OverpaidAmount.String()),
		)
		return nil
	default:
		h.logger.Error("unexpected event type",
			zap.Strings("expected", h.EventTypes()),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
}

// IntegrityAlertHandler handles LedgerIntegrityViolatedEvent.
// The mismatch is already logged where it was detected; this handler raises
// it to the audit log that operators watch.
type IntegrityAlertHandler struct {
	logger *zap.Logger
}

// NewIntegrityAlertHandler creates a new handler for integrity violations
func NewIntegrityAlertHandler(logger *zap.Logger) *IntegrityAlertHandler {
	return &IntegrityAlertHandler{logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *IntegrityAlertHandler) EventTypes() []string {
	return []string{finance.EventTypeLedgerIntegrityViolated}
}

// Handle processes a LedgerIntegrityViolatedEvent
func (h *IntegrityAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	violated, ok := event.(*finance.LedgerIntegrityViolatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			finance.EventTypeLedgerIntegrityViolated, event.EventType())
	}

	h.logger.Error("AUDIT ledger integrity violated",
		zap.String("event_id", violated.EventID().String()),
		zap.String("obligation_id", violated.ObligationID.String()),
		zap.String("stored_paid", violated.StoredPaid.String()),
		zap.String("ledger_sum", violated.LedgerSum.String()),
		zap.String("difference", violated.LedgerSum.Subtract(violated.StoredPaid).String()),
		zap.Time("detected_at", violated.OccurredAt()),
	)
	return nil
}
