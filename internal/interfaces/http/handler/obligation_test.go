package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	financeapp "github.com/erp/dues/internal/application/finance"
	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/erp/dues/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReconciliationService struct {
	mock.Mock
}

func (m *mockReconciliationService) OpenObligation(ctx context.Context, in financeapp.OpenObligationInput) (*finance.Obligation, error) {
	args := m.Called(ctx, in)
	if o := args.Get(0); o != nil {
		return o.(*finance.Obligation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReconciliationService) RegisterPayment(ctx context.Context, in financeapp.RegisterPaymentInput) (*financeapp.RegisterPaymentResult, error) {
	args := m.Called(ctx, in)
	if r := args.Get(0); r != nil {
		return r.(*financeapp.RegisterPaymentResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReconciliationService) GetObligation(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*finance.Obligation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReconciliationService) PaymentHistory(ctx context.Context, id uuid.UUID) (*finance.Obligation, []*finance.PaymentEvent, error) {
	args := m.Called(ctx, id)
	var o *finance.Obligation
	if v := args.Get(0); v != nil {
		o = v.(*finance.Obligation)
	}
	var events []*finance.PaymentEvent
	if v := args.Get(1); v != nil {
		events = v.([]*finance.PaymentEvent)
	}
	return o, events, args.Error(2)
}

func (m *mockReconciliationService) VerifyObligation(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*finance.Obligation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReconciliationService) ListObligations(ctx context.Context, filter financeapp.ObligationListFilter) (*financeapp.ObligationPage, error) {
	args := m.Called(ctx, filter)
	if p := args.Get(0); p != nil {
		return p.(*financeapp.ObligationPage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReconciliationService) FindByExternalID(ctx context.Context, kind finance.ObligationKind, externalID string) (*finance.Obligation, error) {
	args := m.Called(ctx, kind, externalID)
	if o := args.Get(0); o != nil {
		return o.(*finance.Obligation), args.Error(1)
	}
	return nil, args.Error(1)
}

func newObligationRouter(svc ReconciliationService) *gin.Engine {
	h := NewObligationHandler(svc)
	r := gin.New()
	r.POST("/obligations", h.Open)
	r.GET("/obligations", h.List)
	r.GET("/obligations/by-external/:kind/:external_id", h.GetByExternal)
	r.GET("/obligations/:id", h.Get)
	r.POST("/obligations/:id/payments", h.RegisterPayment)
	r.GET("/obligations/:id/payments", h.ListPayments)
	r.GET("/obligations/:id/integrity", h.VerifyIntegrity)
	return r
}

func testObligation(t *testing.T, total, paid string) *finance.Obligation {
	t.Helper()
	o, err := finance.NewObligation(finance.ObligationSource{
		Kind:              finance.ObligationKindSale,
		ExternalID:        "SO-1",
		OccurredOn:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		TotalAmount:       valueobject.MustMoney(total),
		CounterpartyLabel: "Walk-in",
	})
	require.NoError(t, err)
	if paid != "0" {
		require.NoError(t, o.ApplyPayment(&finance.PaymentEvent{
			ID:           uuid.New(),
			ObligationID: o.ID,
			Sequence:     1,
			Amount:       valueobject.MustMoney(paid),
			Method:       finance.PaymentMethodCash,
		}))
	}
	return o
}

func doJSON(r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success, w.Body.String())
	return resp.Data
}

func TestObligationHandler_Open(t *testing.T) {
	svc := new(mockReconciliationService)
	created := testObligation(t, "1500", "0")
	svc.On("OpenObligation", mock.Anything, mock.MatchedBy(func(in financeapp.OpenObligationInput) bool {
		return in.Kind == finance.ObligationKindSale &&
			in.ExternalID == "SO-1" &&
			in.TotalAmount.Equals(valueobject.MustMoney("1500")) &&
			in.InitiallyPaid &&
			in.PaymentMethod == finance.PaymentMethodMada
	})).Return(created, nil)

	w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations", map[string]any{
		"kind":               "sale",
		"external_id":        "SO-1",
		"occurred_on":        "2026-03-14",
		"total_amount":       "1500",
		"counterparty_label": "Walk-in",
		"initially_paid":     true,
		"payment_method":     "mada",
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeData[ObligationResponse](t, w)
	assert.Equal(t, created.ID.String(), data.ID)
	assert.Equal(t, "2026-03-14", data.OccurredOn)
	svc.AssertExpectations(t)
}

func TestObligationHandler_Open_Validation(t *testing.T) {
	svc := new(mockReconciliationService)

	w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations", map[string]any{
		"kind":         "SALE",
		"occurred_on":  "14/03/2026",
		"total_amount": "abc",
	}, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	fields := make([]string, 0, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"external_id", "occurred_on", "total_amount"}, fields)
	svc.AssertNotCalled(t, "OpenObligation", mock.Anything, mock.Anything)
}

func TestObligationHandler_Open_InvalidKind(t *testing.T) {
	svc := new(mockReconciliationService)

	w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations", map[string]any{
		"kind":         "REFUND",
		"external_id":  "X-1",
		"occurred_on":  "2026-03-14",
		"total_amount": "10",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
}

func TestObligationHandler_Get(t *testing.T) {
	svc := new(mockReconciliationService)
	o := testObligation(t, "100", "150")
	svc.On("GetObligation", mock.Anything, o.ID).Return(o, nil)

	w := doJSON(newObligationRouter(svc), http.MethodGet, "/obligations/"+o.ID.String(), nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData[ObligationResponse](t, w)
	assert.Equal(t, "PAID", data.Status)
	assert.True(t, data.Overpaid)
	assert.Equal(t, "-50.00", data.OutstandingAmount.Amount().StringFixed(2))
	assert.Equal(t, "50.00", data.OverpaidAmount.Amount().StringFixed(2))
}

func TestObligationHandler_Get_Errors(t *testing.T) {
	svc := new(mockReconciliationService)
	missing := uuid.New()
	svc.On("GetObligation", mock.Anything, missing).Return(nil, finance.NewObligationNotFoundError(missing))
	r := newObligationRouter(svc)

	w := doJSON(r, http.MethodGet, "/obligations/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/obligations/"+missing.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
}

func TestObligationHandler_List(t *testing.T) {
	svc := new(mockReconciliationService)
	first, second := testObligation(t, "100", "40"), testObligation(t, "250", "0")
	want := financeapp.ObligationListFilter{
		Kind:     "sale",
		Status:   "ALL",
		From:     "2026-03-01",
		To:       "2026-03-31",
		Search:   "walk",
		Page:     2,
		PageSize: 2,
	}
	svc.On("ListObligations", mock.Anything, want).Return(&financeapp.ObligationPage{
		Obligations: []*finance.Obligation{first, second},
		Total:       5,
		Page:        2,
		PageSize:    2,
	}, nil)

	w := doJSON(newObligationRouter(svc), http.MethodGet,
		"/obligations?kind=sale&status=ALL&from=2026-03-01&to=2026-03-31&search=walk&page=2&page_size=2", nil, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeData[[]ObligationResponse](t, w)
	require.Len(t, data, 2)
	assert.Equal(t, "PARTIAL", data[0].Status)
	assert.Equal(t, "UNPAID", data[1].Status)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(5), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	svc.AssertExpectations(t)
}

func TestObligationHandler_List_Errors(t *testing.T) {
	svc := new(mockReconciliationService)
	r := newObligationRouter(svc)

	w := doJSON(r, http.MethodGet, "/obligations?page_size=500", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
	svc.AssertNotCalled(t, "ListObligations", mock.Anything, mock.Anything)

	_, dateErr := financeapp.ObligationListFilter{From: "03/01/2026"}.Query()
	require.Error(t, dateErr)
	svc.On("ListObligations", mock.Anything, mock.Anything).Return(nil, dateErr)
	w = doJSON(r, http.MethodGet, "/obligations?from=03/01/2026", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
}

func TestObligationHandler_GetByExternal(t *testing.T) {
	svc := new(mockReconciliationService)
	o := testObligation(t, "100", "0")
	svc.On("FindByExternalID", mock.Anything, finance.ObligationKindSale, "SO-1").Return(o, nil)
	svc.On("FindByExternalID", mock.Anything, finance.ObligationKindPurchase, "PO-9").Return(nil, finance.ErrObligationNotFound)
	r := newObligationRouter(svc)

	w := doJSON(r, http.MethodGet, "/obligations/by-external/sales/SO-1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, o.ID.String(), decodeData[ObligationResponse](t, w).ID)

	w = doJSON(r, http.MethodGet, "/obligations/by-external/purchase/PO-9", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/obligations/by-external/refund/R-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
}

func TestObligationHandler_RegisterPayment(t *testing.T) {
	o := testObligation(t, "1000", "400")
	event := &finance.PaymentEvent{
		ID:             uuid.New(),
		ObligationID:   o.ID,
		Sequence:       1,
		PaymentNumber:  "PAY-20260314-ABCDEF12",
		Amount:         valueobject.MustMoney("400"),
		Method:         finance.PaymentMethodMada,
		IdempotencyKey: "key-1",
	}

	t.Run("created with header key", func(t *testing.T) {
		svc := new(mockReconciliationService)
		svc.On("RegisterPayment", mock.Anything, mock.MatchedBy(func(in financeapp.RegisterPaymentInput) bool {
			return in.ObligationID == o.ID &&
				in.Amount.Equals(valueobject.MustMoney("400")) &&
				in.Method == "MADA" &&
				in.IdempotencyKey == "key-1"
		})).Return(&financeapp.RegisterPaymentResult{Obligation: o, Event: event}, nil)

		w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations/"+o.ID.String()+"/payments",
			map[string]any{"amount": "400", "method": "MADA"},
			map[string]string{IdempotencyKeyHeader: "key-1"})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		data := decodeData[RegisterPaymentResponse](t, w)
		assert.False(t, data.Replayed)
		assert.Equal(t, "PARTIAL", data.Obligation.Status)
		assert.Equal(t, event.PaymentNumber, data.Payment.PaymentNumber)
	})

	t.Run("replay answers 200", func(t *testing.T) {
		svc := new(mockReconciliationService)
		svc.On("RegisterPayment", mock.Anything, mock.Anything).
			Return(&financeapp.RegisterPaymentResult{Obligation: o, Event: event, Replayed: true}, nil)

		w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations/"+o.ID.String()+"/payments",
			map[string]any{"amount": "400", "method": "MADA", "idempotency_key": "key-1"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeData[RegisterPaymentResponse](t, w).Replayed)
	})

	t.Run("conflicting keys", func(t *testing.T) {
		svc := new(mockReconciliationService)
		w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations/"+o.ID.String()+"/payments",
			map[string]any{"amount": "400", "method": "MADA", "idempotency_key": "a"},
			map[string]string{IdempotencyKeyHeader: "b"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RegisterPayment", mock.Anything, mock.Anything)
	})
}

func TestObligationHandler_RegisterPayment_NonPositiveAmountReachesDomain(t *testing.T) {
	for _, amount := range []string{"0", "-5"} {
		t.Run(amount, func(t *testing.T) {
			svc := new(mockReconciliationService)
			id := uuid.New()
			svc.On("RegisterPayment", mock.Anything, mock.Anything).Return(nil, finance.ErrInvalidAmount)

			w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations/"+id.String()+"/payments",
				map[string]any{"amount": amount, "method": "CASH"}, nil)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, dto.ErrCodeInvalidAmount, decodeResponse(t, w).Error.Code)
		})
	}
}

func TestObligationHandler_RegisterPayment_Cancelled(t *testing.T) {
	svc := new(mockReconciliationService)
	id := uuid.New()
	svc.On("RegisterPayment", mock.Anything, mock.Anything).Return(nil, finance.ErrObligationCancelled)

	w := doJSON(newObligationRouter(svc), http.MethodPost, "/obligations/"+id.String()+"/payments",
		map[string]any{"amount": "10", "method": "CASH"}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeObligationCancelled, decodeResponse(t, w).Error.Code)
}

func TestObligationHandler_ListPayments(t *testing.T) {
	svc := new(mockReconciliationService)
	o := testObligation(t, "100", "0")
	events := []*finance.PaymentEvent{
		{ID: uuid.New(), ObligationID: o.ID, Sequence: 1, Amount: valueobject.MustMoney("30"), Method: "CASH"},
		{ID: uuid.New(), ObligationID: o.ID, Sequence: 2, Amount: valueobject.MustMoney("20"), Method: "VISA"},
	}
	svc.On("PaymentHistory", mock.Anything, o.ID).Return(o, events, nil)

	w := doJSON(newObligationRouter(svc), http.MethodGet, "/obligations/"+o.ID.String()+"/payments", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData[PaymentHistoryResponse](t, w)
	require.Len(t, data.Payments, 2)
	assert.Equal(t, 1, data.Payments[0].Sequence)
	assert.Equal(t, "VISA", data.Payments[1].Method)
}

func TestObligationHandler_VerifyIntegrity(t *testing.T) {
	o := testObligation(t, "100", "0")

	t.Run("consistent", func(t *testing.T) {
		svc := new(mockReconciliationService)
		svc.On("VerifyObligation", mock.Anything, o.ID).Return(o, nil)

		w := doJSON(newObligationRouter(svc), http.MethodGet, "/obligations/"+o.ID.String()+"/integrity", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeData[IntegrityResponse](t, w).Consistent)
	})

	t.Run("mismatch", func(t *testing.T) {
		svc := new(mockReconciliationService)
		svc.On("VerifyObligation", mock.Anything, o.ID).Return(o, &finance.IntegrityMismatchError{
			ObligationID: o.ID,
			StoredPaid:   valueobject.MustMoney("80"),
			LedgerSum:    valueobject.MustMoney("30"),
		})

		w := doJSON(newObligationRouter(svc), http.MethodGet, "/obligations/"+o.ID.String()+"/integrity", nil, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeIntegrityMismatch, resp.Error.Code)
		assert.Equal(t, dto.MessageContactSupport, resp.Error.Message)
	})
}
