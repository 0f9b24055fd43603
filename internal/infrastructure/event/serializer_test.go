package event

import (
	"testing"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_RoundTripsDuesEvents(t *testing.T) {
	s := NewEventSerializer()
	RegisterDuesEvents(s)

	assert.Equal(t, []string{
		finance.EventTypeLedgerIntegrityViolated,
		finance.EventTypeObligationOpened,
		finance.EventTypeObligationOverpaid,
		finance.EventTypeObligationSettled,
		finance.EventTypePaymentRegistered,
	}, s.RegisteredTypes())

	mismatch := &finance.IntegrityMismatchError{
		ObligationID: uuid.New(),
		StoredPaid:   valueobject.MustMoney("100"),
		LedgerSum:    valueobject.MustMoney("130"),
	}
	original := finance.NewLedgerIntegrityViolatedEvent(mismatch)

	data, err := s.Serialize(original)
	require.NoError(t, err)

	decoded, err := s.Deserialize(finance.EventTypeLedgerIntegrityViolated, data)
	require.NoError(t, err)

	got, ok := decoded.(*finance.LedgerIntegrityViolatedEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), got.EventID())
	assert.Equal(t, mismatch.ObligationID, got.ObligationID)
	assert.True(t, got.LedgerSum.Equals(mismatch.LedgerSum))
	assert.True(t, got.StoredPaid.Equals(mismatch.StoredPaid))
}

func TestEventSerializer_UnknownType(t *testing.T) {
	s := NewEventSerializer()
	assert.False(t, s.IsRegistered("Nope"))

	_, err := s.Deserialize("Nope", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestEventSerializer_BadPayload(t *testing.T) {
	s := NewEventSerializer()
	s.Register("Test", &testEvent{})

	_, err := s.Deserialize("Test", []byte(`{"data":`))
	require.Error(t, err)
}
