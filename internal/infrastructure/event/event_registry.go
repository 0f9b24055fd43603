package event

import (
	"github.com/erp/dues/internal/domain/finance"
)

// RegisterDuesEvents registers every reconciliation event with the serializer
func RegisterDuesEvents(serializer *EventSerializer) {
	serializer.Register(finance.EventTypeObligationOpened, &finance.ObligationOpenedEvent{})
	serializer.Register(finance.EventTypePaymentRegistered, &finance.PaymentRegisteredEvent{})
	serializer.Register(finance.EventTypeObligationSettled, &finance.ObligationSettledEvent{})
	serializer.Register(finance.EventTypeObligationOverpaid, &finance.ObligationOverpaidEvent{})
	serializer.Register(finance.EventTypeLedgerIntegrityViolated, &finance.LedgerIntegrityViolatedEvent{})
}
