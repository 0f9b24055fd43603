package event

import (
	"context"
	"fmt"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// JournalHandler writes every registered domain event to the log as JSON so
// the payment trail can be replayed from log storage.
type JournalHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewJournalHandler creates a journal for the serializer's registered types
func NewJournalHandler(serializer *EventSerializer, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{serializer: serializer, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *JournalHandler) EventTypes() []string {
	return h.serializer.RegisteredTypes()
}

// Handle implements shared.EventHandler
func (h *JournalHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("journal %s: %w", event.EventType(), err)
	}
	logger.L(ctx, h.logger).Info("Domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.ByteString("payload", payload),
	)
	return nil
}
