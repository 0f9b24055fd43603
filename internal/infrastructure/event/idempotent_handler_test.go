package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/dues/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubStore is a map-backed IdempotencyStore that can be told to fail
type stubStore struct {
	marks map[string]bool
	err   error
}

func newStubStore() *stubStore {
	return &stubStore{marks: make(map[string]bool)}
}

func (s *stubStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.marks[key] {
		return false, nil
	}
	s.marks[key] = true
	return true, nil
}

func (s *stubStore) IsProcessed(_ context.Context, key string) (bool, error) {
	return s.marks[key], s.err
}

func (s *stubStore) Close() error { return nil }

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	inner := newTestHandler("PaymentRegistered")
	h := NewIdempotentHandler("settlement", inner, newStubStore(), shared.DefaultIdempotencyConfig(), zap.NewNop())

	event := newTestEvent("PaymentRegistered")
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, 1, inner.count())
	assert.Equal(t, IdempotencyStats{EventsProcessed: 1, EventsDuplicate: 1}, h.Stats())
	assert.Equal(t, []string{"PaymentRegistered"}, h.EventTypes())
	assert.Same(t, inner, h.Unwrap())
}

func TestIdempotentHandler_HandlersDoNotShareMarks(t *testing.T) {
	store := newStubStore()
	first := newTestHandler()
	second := newTestHandler()
	h1 := NewIdempotentHandler("metrics", first, store, shared.DefaultIdempotencyConfig(), zap.NewNop())
	h2 := NewIdempotentHandler("audit", second, store, shared.DefaultIdempotencyConfig(), zap.NewNop())

	event := newTestEvent("ObligationSettled")
	require.NoError(t, h1.Handle(context.Background(), event))
	require.NoError(t, h2.Handle(context.Background(), event))

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestIdempotentHandler_StoreFailureStillDelivers(t *testing.T) {
	store := newStubStore()
	store.err = errors.New("redis down")
	inner := newTestHandler()
	h := NewIdempotentHandler("settlement", inner, store, shared.DefaultIdempotencyConfig(), zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), newTestEvent("ObligationSettled")))
	assert.Equal(t, 1, inner.count())
}

func TestIdempotentHandler_HandlerError(t *testing.T) {
	inner := newTestHandler()
	inner.err = errors.New("boom")
	h := NewIdempotentHandler("settlement", inner, newStubStore(), shared.DefaultIdempotencyConfig(), zap.NewNop())

	err := h.Handle(context.Background(), newTestEvent("ObligationSettled"))
	require.Error(t, err)
	assert.Equal(t, int64(1), h.Stats().EventsFailed)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	inner := newTestHandler()
	cfg := shared.IdempotencyConfig{TTL: time.Hour, Enabled: false}
	h := NewIdempotentHandler("settlement", inner, newStubStore(), cfg, zap.NewNop())

	event := &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent("ObligationSettled", "Obligation", uuid.New())}
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Equal(t, 2, inner.count())
}
