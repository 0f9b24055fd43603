package persistence

import (
	"context"
	"errors"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/domain/shared/valueobject"
	"github.com/erp/dues/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentEventRepository implements the append-only PaymentEventRepository
type GormPaymentEventRepository struct {
	db *gorm.DB
}

// NewGormPaymentEventRepository creates a new GormPaymentEventRepository
func NewGormPaymentEventRepository(db *gorm.DB) *GormPaymentEventRepository {
	return &GormPaymentEventRepository{db: db}
}

// Append inserts a payment event. A duplicate sequence or idempotency key
// means another writer got there first and is reported as CONCURRENCY_CONFLICT.
func (r *GormPaymentEventRepository) Append(ctx context.Context, event *finance.PaymentEvent) error {
	model := models.PaymentEventModelFromDomain(event)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// NextSequence returns max(sequence)+1 for the obligation
func (r *GormPaymentEventRepository) NextSequence(ctx context.Context, obligationID uuid.UUID) (int, error) {
	var maxSeq int
	err := r.db.WithContext(ctx).
		Model(&models.PaymentEventModel{}).
		Where("obligation_id = ?", obligationID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

// AmountsFor returns the raw amounts so the sum is computed exactly in Go
// rather than by the database's numeric type.
func (r *GormPaymentEventRepository) AmountsFor(ctx context.Context, obligationID uuid.UUID) ([]valueobject.Money, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.PaymentEventModel{}).
		Where("obligation_id = ?", obligationID).
		Order("sequence ASC").
		Pluck("amount", &amounts).Error
	if err != nil {
		return nil, err
	}

	result := make([]valueobject.Money, len(amounts))
	for i, a := range amounts {
		result[i] = valueobject.NewMoney(a)
	}
	return result, nil
}

// FindByObligation returns all events for an obligation ordered by sequence
func (r *GormPaymentEventRepository) FindByObligation(ctx context.Context, obligationID uuid.UUID) ([]*finance.PaymentEvent, error) {
	var rows []models.PaymentEventModel
	if err := r.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]*finance.PaymentEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].ToDomain()
	}
	return events, nil
}

// FindByIdempotencyKey returns the event recorded under key
func (r *GormPaymentEventRepository) FindByIdempotencyKey(ctx context.Context, key string) (*finance.PaymentEvent, error) {
	var model models.PaymentEventModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormPaymentEventRepository implements PaymentEventRepository
var _ finance.PaymentEventRepository = (*GormPaymentEventRepository)(nil)
