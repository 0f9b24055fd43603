package handler

import (
	"context"
	"strings"
	"time"

	financeapp "github.com/erp/dues/internal/application/finance"
	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader lets clients retry payment registration safely
const IdempotencyKeyHeader = "Idempotency-Key"

// ReconciliationService is the part of the reconciliation application
// service the HTTP layer drives
type ReconciliationService interface {
	OpenObligation(ctx context.Context, in financeapp.OpenObligationInput) (*finance.Obligation, error)
	RegisterPayment(ctx context.Context, in financeapp.RegisterPaymentInput) (*financeapp.RegisterPaymentResult, error)
	GetObligation(ctx context.Context, id uuid.UUID) (*finance.Obligation, error)
	PaymentHistory(ctx context.Context, id uuid.UUID) (*finance.Obligation, []*finance.PaymentEvent, error)
	VerifyObligation(ctx context.Context, id uuid.UUID) (*finance.Obligation, error)
	ListObligations(ctx context.Context, filter financeapp.ObligationListFilter) (*financeapp.ObligationPage, error)
	FindByExternalID(ctx context.Context, kind finance.ObligationKind, externalID string) (*finance.Obligation, error)
}

// ObligationHandler handles obligation and payment endpoints
type ObligationHandler struct {
	BaseHandler
	service ReconciliationService
}

// NewObligationHandler creates a new ObligationHandler
func NewObligationHandler(service ReconciliationService) *ObligationHandler {
	return &ObligationHandler{service: service}
}

// Open godoc
// @Summary      Open an obligation
// @Description  Create the reconciliation record for a sale, purchase, expense or payroll entry.
// @Description  Records settled at entry get their payment recorded in the same transaction.
// @Tags         obligations
// @Accept       json
// @Produce      json
// @Param        request body OpenObligationRequest true "Obligation source"
// @Success      201 {object} APIResponse[ObligationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /obligations [post]
func (h *ObligationHandler) Open(c *gin.Context) {
	var req OpenObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	kind, err := finance.ParseObligationKind(req.Kind)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	total, err := valueobject.NewMoneyFromString(req.TotalAmount)
	if err != nil {
		h.BadRequest(c, "Invalid total amount")
		return
	}
	occurredOn, err := time.Parse("2006-01-02", req.OccurredOn)
	if err != nil {
		h.BadRequest(c, "Invalid occurred_on date")
		return
	}
	var method finance.PaymentMethod
	if strings.TrimSpace(req.PaymentMethod) != "" {
		if method, err = finance.ParsePaymentMethod(req.PaymentMethod); err != nil {
			h.HandleDomainError(c, err)
			return
		}
	}

	obligation, err := h.service.OpenObligation(c.Request.Context(), financeapp.OpenObligationInput{
		Kind:              kind,
		ExternalID:        req.ExternalID,
		Reference:         req.Reference,
		OccurredOn:        occurredOn,
		TotalAmount:       total,
		CounterpartyLabel: req.CounterpartyLabel,
		InitiallyPaid:     req.InitiallyPaid,
		PaymentMethod:     method,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toObligationResponse(obligation))
}

// Get godoc
// @Summary      Get an obligation
// @Description  Return the obligation with its paid and outstanding amounts
// @Tags         obligations
// @Produce      json
// @Param        id path string true "Obligation ID" format(uuid)
// @Success      200 {object} APIResponse[ObligationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /obligations/{id} [get]
func (h *ObligationHandler) Get(c *gin.Context) {
	id, ok := h.obligationID(c)
	if !ok {
		return
	}

	obligation, err := h.service.GetObligation(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toObligationResponse(obligation))
}

// List godoc
// @Summary      List obligations
// @Description  Page through obligations ordered by occurrence date, filtered by kind, status,
// @Description  an inclusive from/to date range and a free-text search over counterparty and reference.
// @Tags         obligations
// @Produce      json
// @Param        kind      query string false "SALE, PURCHASE, EXPENSE, PAYROLL or ALL"
// @Param        status    query string false "UNPAID, PARTIAL, PAID or ALL"
// @Param        from      query string false "First occurrence date, YYYY-MM-DD"
// @Param        to        query string false "Last occurrence date, YYYY-MM-DD"
// @Param        search    query string false "Counterparty, reference or external id fragment"
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20) maximum(200)
// @Success      200 {object} APIResponse[[]ObligationResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /obligations [get]
func (h *ObligationHandler) List(c *gin.Context) {
	var filter financeapp.ObligationListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.service.ListObligations(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, toObligationResponses(page.Obligations), page.Total, page.Page, page.PageSize)
}

// GetByExternal godoc
// @Summary      Find an obligation by its owning record
// @Description  Look up the obligation a sale, purchase, expense or payroll record was opened with
// @Tags         obligations
// @Produce      json
// @Param        kind        path string true "SALE, PURCHASE, EXPENSE or PAYROLL"
// @Param        external_id path string true "Owning record id"
// @Success      200 {object} APIResponse[ObligationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /obligations/by-external/{kind}/{external_id} [get]
func (h *ObligationHandler) GetByExternal(c *gin.Context) {
	kind, err := finance.ParseObligationKind(c.Param("kind"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	obligation, err := h.service.FindByExternalID(c.Request.Context(), kind, c.Param("external_id"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toObligationResponse(obligation))
}

// RegisterPayment godoc
// @Summary      Register a payment
// @Description  Append a payment to the obligation's ledger and update its paid amount and status.
// @Description  A repeated Idempotency-Key returns the original payment without applying it again.
// @Tags         obligations
// @Accept       json
// @Produce      json
// @Param        id path string true "Obligation ID" format(uuid)
// @Param        Idempotency-Key header string false "Client retry key"
// @Param        request body RegisterPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[RegisterPaymentResponse]
// @Success      200 {object} APIResponse[RegisterPaymentResponse] "Replayed"
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /obligations/{id}/payments [post]
func (h *ObligationHandler) RegisterPayment(c *gin.Context) {
	id, ok := h.obligationID(c)
	if !ok {
		return
	}

	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	amount, err := valueobject.NewMoneyFromString(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	bodyKey := strings.TrimSpace(req.IdempotencyKey)
	switch {
	case key == "":
		key = bodyKey
	case bodyKey != "" && bodyKey != key:
		h.BadRequest(c, "Idempotency-Key header and idempotency_key field disagree")
		return
	}

	input := financeapp.RegisterPaymentInput{
		ObligationID:    id,
		Amount:          amount,
		Method:          finance.PaymentMethod(req.Method),
		Note:            req.Note,
		ReferenceNumber: req.ReferenceNumber,
		IdempotencyKey:  key,
	}
	if req.OccurredAt != nil {
		input.OccurredAt = *req.OccurredAt
	}

	result, err := h.service.RegisterPayment(c.Request.Context(), input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	resp := RegisterPaymentResponse{
		Obligation: toObligationResponse(result.Obligation),
		Payment:    toPaymentResponse(result.Event),
		Replayed:   result.Replayed,
	}
	if result.Replayed {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// ListPayments godoc
// @Summary      List payments
// @Description  Return the obligation's payments in the order they were accepted
// @Tags         obligations
// @Produce      json
// @Param        id path string true "Obligation ID" format(uuid)
// @Success      200 {object} APIResponse[PaymentHistoryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /obligations/{id}/payments [get]
func (h *ObligationHandler) ListPayments(c *gin.Context) {
	id, ok := h.obligationID(c)
	if !ok {
		return
	}

	obligation, events, err := h.service.PaymentHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithTotal(c, PaymentHistoryResponse{
		Obligation: toObligationResponse(obligation),
		Payments:   toPaymentResponses(events),
	}, int64(len(events)))
}

// VerifyIntegrity godoc
// @Summary      Verify ledger integrity
// @Description  Compare the stored paid amount with the sum of the payment ledger
// @Tags         obligations
// @Produce      json
// @Param        id path string true "Obligation ID" format(uuid)
// @Success      200 {object} APIResponse[IntegrityResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /obligations/{id}/integrity [get]
func (h *ObligationHandler) VerifyIntegrity(c *gin.Context) {
	id, ok := h.obligationID(c)
	if !ok {
		return
	}

	if _, err := h.service.VerifyObligation(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, IntegrityResponse{ObligationID: id.String(), Consistent: true})
}

func (h *ObligationHandler) obligationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid obligation ID format")
		return uuid.Nil, false
	}
	return id, true
}
