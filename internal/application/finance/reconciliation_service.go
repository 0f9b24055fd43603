package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/erp/dues/internal/infrastructure/logger"
	"github.com/erp/dues/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxConflictRetries is used when no retry budget is configured
const DefaultMaxConflictRetries = 3

const verifyPageSize = 500

// RegisterPaymentInput describes a payment against an obligation
type RegisterPaymentInput struct {
	ObligationID    uuid.UUID
	Amount          valueobject.Money
	Method          finance.PaymentMethod
	Note            string
	ReferenceNumber string
	OccurredAt      time.Time
	IdempotencyKey  string
}

// RegisterPaymentResult is the obligation after the payment and the ledger event.
// Replayed is true when the event was recorded by an earlier request with the same idempotency key.
type RegisterPaymentResult struct {
	Obligation *finance.Obligation
	Event      *finance.PaymentEvent
	Replayed   bool
}

// OpenObligationInput is what an owning domain supplies when its record is created
type OpenObligationInput = finance.ObligationSource

// ReconciliationService registers payments against obligations and verifies the ledger
type ReconciliationService struct {
	obligations  finance.ObligationRepository
	events       finance.PaymentEventRepository
	scope        TransactionScope
	cancellation *finance.CancellationPolicy
	publisher    shared.EventPublisher
	metrics      *telemetry.ReconciliationMetrics
	locks        *KeyedMutex
	maxRetries   int
	logger       *zap.Logger
	now          func() time.Time
}

// ServiceOption configures a ReconciliationService
type ServiceOption func(*ReconciliationService)

// WithEventPublisher publishes domain events after each commit
func WithEventPublisher(p shared.EventPublisher) ServiceOption {
	return func(s *ReconciliationService) { s.publisher = p }
}

// WithMetrics records reconciliation metrics
func WithMetrics(m *telemetry.ReconciliationMetrics) ServiceOption {
	return func(s *ReconciliationService) { s.metrics = m }
}

// WithCancellationPolicy sets the policy consulted before accepting a payment
func WithCancellationPolicy(p *finance.CancellationPolicy) ServiceOption {
	return func(s *ReconciliationService) { s.cancellation = p }
}

// WithMaxConflictRetries sets how often an optimistic conflict is retried
func WithMaxConflictRetries(n int) ServiceOption {
	return func(s *ReconciliationService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *ReconciliationService) { s.logger = l }
}

// WithClock overrides the clock used for ledger timestamps
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ReconciliationService) { s.now = now }
}

// NewReconciliationService creates a new ReconciliationService.
// The read repositories serve pre-transaction checks and queries; all writes go through scope.
func NewReconciliationService(
	obligations finance.ObligationRepository,
	events finance.PaymentEventRepository,
	scope TransactionScope,
	opts ...ServiceOption,
) *ReconciliationService {
	s := &ReconciliationService{
		obligations:  obligations,
		events:       events,
		scope:        scope,
		cancellation: finance.NewCancellationPolicy(),
		locks:        NewKeyedMutex(),
		maxRetries:   DefaultMaxConflictRetries,
		logger:       zap.NewNop(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CancellationPolicy returns the policy so owning domains can register checkers
func (s *ReconciliationService) CancellationPolicy() *finance.CancellationPolicy {
	return s.cancellation
}

// RegisterPayment appends a payment to the ledger and applies it to the obligation atomically.
func (s *ReconciliationService) RegisterPayment(ctx context.Context, in RegisterPaymentInput) (*RegisterPaymentResult, error) {
	started := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "register_payment")
	defer span.End()
	defer s.metrics.RecordDuration(ctx, "register_payment", started)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrObligationID, in.ObligationID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
		telemetry.SpanAttrPaymentMethod, string(in.Method),
	)
	log := logger.L(ctx, s.logger).With(
		zap.String("obligation_id", in.ObligationID.String()),
		zap.String("amount", in.Amount.String()),
	)

	if err := finance.ValidatePaymentAmount(in.Amount); err != nil {
		return nil, s.reject(ctx, span, err)
	}

	obligation, err := s.obligations.FindByID(ctx, in.ObligationID)
	if err != nil {
		return nil, s.reject(ctx, span, err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrObligationKind, string(obligation.Kind))

	if err := s.cancellation.EnsureActive(ctx, obligation); err != nil {
		return nil, s.reject(ctx, span, err)
	}

	unlock := s.locks.Lock(in.ObligationID)
	defer unlock()

	var (
		result  *RegisterPaymentResult
		pending []shared.DomainEvent
	)
	for attempt := 0; ; attempt++ {
		result, pending, err = s.registerOnce(ctx, in)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= s.maxRetries {
			break
		}
		log.Warn("Payment registration conflicted, retrying", zap.Int("attempt", attempt+1))
	}

	if err != nil {
		var mismatch *finance.IntegrityMismatchError
		if errors.As(err, &mismatch) {
			s.reportMismatch(ctx, obligation.Kind, mismatch)
		}
		return nil, s.reject(ctx, span, err)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, result.Event.ID.String(),
		telemetry.SpanAttrStatus, string(result.Obligation.Status()),
		telemetry.SpanAttrReplayed, result.Replayed,
	)

	if result.Replayed {
		s.metrics.RecordPaymentReplayed(ctx, string(obligation.Kind))
		log.Info("Payment replayed from idempotency key",
			zap.String("payment_id", result.Event.ID.String()),
			zap.String("idempotency_key", in.IdempotencyKey),
		)
		return result, nil
	}

	s.metrics.RecordPaymentRegistered(ctx, string(obligation.Kind), string(result.Event.Method),
		result.Event.Amount.Amount().InexactFloat64())
	log.Info("Payment registered",
		zap.String("payment_id", result.Event.ID.String()),
		zap.String("payment_number", result.Event.PaymentNumber),
		zap.String("paid_amount", result.Obligation.PaidAmount().String()),
		zap.String("status", string(result.Obligation.Status())),
	)
	s.publish(ctx, pending...)
	return result, nil
}

// registerOnce runs one attempt of the atomic unit. Domain events are returned
// rather than published so that nothing leaves the process before commit.
func (s *ReconciliationService) registerOnce(ctx context.Context, in RegisterPaymentInput) (*RegisterPaymentResult, []shared.DomainEvent, error) {
	var (
		result  *RegisterPaymentResult
		pending []shared.DomainEvent
	)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		obligationRepo := repos.ObligationRepo()
		ledger := finance.NewPaymentLedger(obligationRepo, repos.PaymentEventRepo()).WithClock(s.now)

		obligation, err := obligationRepo.FindByIDForUpdate(ctx, in.ObligationID)
		if err != nil {
			return err
		}

		if previous, found, err := ledger.FindByIdempotencyKey(ctx, in.IdempotencyKey); err != nil {
			return err
		} else if found {
			if previous.ObligationID != obligation.ID {
				return shared.NewDomainError("IDEMPOTENCY_KEY_REUSED",
					"Idempotency key was already used for a different obligation")
			}
			result = &RegisterPaymentResult{Obligation: obligation, Event: previous, Replayed: true}
			return nil
		}

		if err := ledger.Verify(ctx, obligation); err != nil {
			return err
		}

		event, err := ledger.AppendEvent(ctx, finance.AppendEventInput{
			ObligationID:    obligation.ID,
			Amount:          in.Amount,
			Method:          in.Method,
			Note:            in.Note,
			ReferenceNumber: in.ReferenceNumber,
			IdempotencyKey:  in.IdempotencyKey,
			OccurredAt:      in.OccurredAt,
		})
		if err != nil {
			return err
		}
		if err := obligation.ApplyPayment(event); err != nil {
			return err
		}
		if err := obligationRepo.SaveWithLock(ctx, obligation); err != nil {
			return err
		}

		pending = obligation.GetDomainEvents()
		obligation.ClearDomainEvents()
		result = &RegisterPaymentResult{Obligation: obligation, Event: event}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, pending, nil
}

// OpenObligation registers the reconciliation view of a newly created sale,
// purchase, expense or payroll record. Records settled at entry get their
// full payment in the ledger within the same transaction.
func (s *ReconciliationService) OpenObligation(ctx context.Context, in OpenObligationInput) (*finance.Obligation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "open_obligation")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrObligationKind, string(in.Kind),
		telemetry.SpanAttrAmount, in.TotalAmount.String(),
	)

	obligation, err := finance.NewObligation(in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var pending []shared.DomainEvent
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		obligationRepo := repos.ObligationRepo()
		if err := obligationRepo.Create(ctx, obligation); err != nil {
			return err
		}
		if in.InitiallyPaid && obligation.TotalAmount().IsPositive() {
			method := in.PaymentMethod
			if method == "" {
				method = finance.PaymentMethodCash
			}
			ledger := finance.NewPaymentLedger(obligationRepo, repos.PaymentEventRepo()).WithClock(s.now)
			event, err := ledger.AppendEvent(ctx, finance.AppendEventInput{
				ObligationID: obligation.ID,
				Amount:       obligation.TotalAmount(),
				Method:       method,
				Note:         "Settled at entry",
				OccurredAt:   obligation.OccurredOn,
			})
			if err != nil {
				return err
			}
			if err := obligation.ApplyPayment(event); err != nil {
				return err
			}
			if err := obligationRepo.SaveWithLock(ctx, obligation); err != nil {
				return err
			}
		}
		pending = obligation.GetDomainEvents()
		obligation.ClearDomainEvents()
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrObligationID, obligation.ID.String(),
		telemetry.SpanAttrStatus, string(obligation.Status()),
	)
	s.metrics.RecordObligationOpened(ctx, string(obligation.Kind), string(obligation.Status()))
	logger.L(ctx, s.logger).Info("Obligation opened",
		zap.String("obligation_id", obligation.ID.String()),
		zap.String("kind", string(obligation.Kind)),
		zap.String("external_id", obligation.ExternalID),
		zap.String("total_amount", obligation.TotalAmount().String()),
		zap.String("status", string(obligation.Status())),
	)
	s.publish(ctx, pending...)
	return obligation, nil
}

// GetObligation returns an obligation by ID
func (s *ReconciliationService) GetObligation(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	return s.obligations.FindByID(ctx, id)
}

// PaymentHistory returns the obligation and its payments in acceptance order
func (s *ReconciliationService) PaymentHistory(ctx context.Context, id uuid.UUID) (*finance.Obligation, []*finance.PaymentEvent, error) {
	obligation, err := s.obligations.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := finance.NewPaymentLedger(s.obligations, s.events).History(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return obligation, events, nil
}

// VerifyObligation checks one obligation against its ledger.
// A mismatch is returned as *finance.IntegrityMismatchError and reported; it is never repaired.
func (s *ReconciliationService) VerifyObligation(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "verify_obligation")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrObligationID, id.String())

	obligation, err := s.verifyLocked(ctx, id)
	if err != nil {
		var mismatch *finance.IntegrityMismatchError
		if errors.As(err, &mismatch) {
			s.reportMismatch(ctx, obligation.Kind, mismatch)
		}
		telemetry.RecordError(span, err)
		return obligation, err
	}
	return obligation, nil
}

// verifyLocked reads the obligation row under lock and sums its ledger in the
// same transaction, so a payment committing concurrently is either fully
// visible or not at all. The obligation is returned alongside a mismatch.
func (s *ReconciliationService) verifyLocked(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var obligation *finance.Obligation
	var verifyErr error
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.ObligationRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		obligation = o
		verifyErr = finance.NewPaymentLedger(repos.ObligationRepo(), repos.PaymentEventRepo()).Verify(ctx, o)
		var mismatch *finance.IntegrityMismatchError
		if verifyErr != nil && !errors.As(verifyErr, &mismatch) {
			return verifyErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obligation, verifyErr
}

// VerifyLedger sweeps every obligation matching filter and returns the mismatches found
func (s *ReconciliationService) VerifyLedger(ctx context.Context, filter finance.ObligationFilter) ([]finance.IntegrityMismatchError, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "verify_ledger")
	defer span.End()

	ledger := finance.NewPaymentLedger(s.obligations, s.events)
	mismatches := make([]finance.IntegrityMismatchError, 0)
	checked := 0

	page := filter
	page.Limit = verifyPageSize
	for {
		if err := ctx.Err(); err != nil {
			return mismatches, err
		}
		batch, err := s.obligations.FindAll(ctx, page)
		if err != nil {
			telemetry.RecordError(span, err)
			return mismatches, fmt.Errorf("load obligations: %w", err)
		}
		for _, o := range batch {
			if filter.Limit > 0 && checked >= filter.Limit {
				break
			}
			checked++
			err := ledger.Verify(ctx, o)
			if err == nil {
				continue
			}
			var mismatch *finance.IntegrityMismatchError
			if !errors.As(err, &mismatch) {
				telemetry.RecordError(span, err)
				return mismatches, err
			}
			// the page was read without locks; a payment may have committed since
			if _, err = s.verifyLocked(ctx, o.ID); err == nil {
				continue
			}
			if !errors.As(err, &mismatch) {
				telemetry.RecordError(span, err)
				return mismatches, err
			}
			s.reportMismatch(ctx, o.Kind, mismatch)
			mismatches = append(mismatches, *mismatch)
		}
		if len(batch) < verifyPageSize || (filter.Limit > 0 && checked >= filter.Limit) {
			break
		}
		page.Offset += verifyPageSize
	}

	telemetry.SetAttributes(span, "verify.checked", checked, "verify.mismatches", len(mismatches))
	logger.L(ctx, s.logger).Info("Ledger verification finished",
		zap.Int("checked", checked),
		zap.Int("mismatches", len(mismatches)),
	)
	return mismatches, nil
}

func (s *ReconciliationService) reportMismatch(ctx context.Context, kind finance.ObligationKind, mismatch *finance.IntegrityMismatchError) {
	logger.L(ctx, s.logger).Error("Payment ledger integrity mismatch",
		zap.String("obligation_id", mismatch.ObligationID.String()),
		zap.String("kind", string(kind)),
		zap.String("stored_paid", mismatch.StoredPaid.String()),
		zap.String("ledger_sum", mismatch.LedgerSum.String()),
		zap.String("difference", mismatch.Difference().String()),
	)
	s.metrics.RecordIntegrityMismatch(ctx, string(kind))
	s.publish(ctx, finance.NewLedgerIntegrityViolatedEvent(mismatch))
}

func (s *ReconciliationService) reject(ctx context.Context, span trace.Span, err error) error {
	telemetry.RecordError(span, err)
	s.metrics.RecordPaymentRejected(ctx, ErrorCode(err))
	return err
}

func (s *ReconciliationService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.L(ctx, s.logger).Warn("Failed to publish reconciliation events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// ErrorCode returns the domain code carried by err, or INTERNAL_ERROR
func ErrorCode(err error) string {
	var mismatch *finance.IntegrityMismatchError
	if errors.As(err, &mismatch) {
		return finance.ErrIntegrityMismatch.Code
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL_ERROR"
}
