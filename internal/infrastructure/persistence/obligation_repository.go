package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/dues/internal/domain/finance"
	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormObligationRepository implements ObligationRepository using GORM
type GormObligationRepository struct {
	db *gorm.DB
}

// NewGormObligationRepository creates a new GormObligationRepository
func NewGormObligationRepository(db *gorm.DB) *GormObligationRepository {
	return &GormObligationRepository{db: db}
}

// FindByID finds an obligation by its ID
func (r *GormObligationRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id), id)
}

// FindByIDForUpdate loads the obligation with SELECT ... FOR UPDATE.
// SQLite has no row locks; there the surrounding write transaction serialises access.
func (r *GormObligationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Obligation, error) {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findOne(query, id)
}

// FindByExternalID finds the obligation wrapping an owning domain record
func (r *GormObligationRepository) FindByExternalID(ctx context.Context, kind finance.ObligationKind, externalID string) (*finance.Obligation, error) {
	var model models.ObligationModel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND external_id = ?", string(kind), externalID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrObligationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormObligationRepository) findOne(query *gorm.DB, id uuid.UUID) (*finance.Obligation, error) {
	var model models.ObligationModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.NewObligationNotFoundError(id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds obligations matching the filter ordered by occurred_on, id
func (r *GormObligationRepository) FindAll(ctx context.Context, filter finance.ObligationFilter) ([]*finance.Obligation, error) {
	var rows []models.ObligationModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ObligationModel{}), filter).
		Order("occurred_on ASC").
		Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]*finance.Obligation, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// Count counts obligations matching the filter
func (r *GormObligationRepository) Count(ctx context.Context, filter finance.ObligationFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.ObligationModel{}), filter).
		Count(&count).Error
	return count, err
}

func (r *GormObligationRepository) applyFilter(query *gorm.DB, filter finance.ObligationFilter) *gorm.DB {
	if filter.Kind != nil {
		query = query.Where("kind = ?", string(*filter.Kind))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.From != nil {
		query = query.Where("occurred_on >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("occurred_on < ?", *filter.To)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(counterparty_label) LIKE ? OR LOWER(reference) LIKE ? OR LOWER(external_id) LIKE ?",
			pattern, pattern, pattern)
	}
	return query
}

// Create inserts a new obligation. A second obligation for the same kind and
// external record is rejected with ALREADY_EXISTS.
func (r *GormObligationRepository) Create(ctx context.Context, o *finance.Obligation) error {
	model := models.ObligationModelFromDomain(o)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.ErrAlreadyExists.Code,
				"An obligation already exists for "+string(o.Kind)+" "+o.ExternalID)
		}
		return err
	}
	return nil
}

// SaveWithLock writes the paid amount and status if the stored version is o.Version-1
func (r *GormObligationRepository) SaveWithLock(ctx context.Context, o *finance.Obligation) error {
	state := o.State()
	result := r.db.WithContext(ctx).
		Model(&models.ObligationModel{}).
		Where("id = ? AND version = ?", state.ID, state.Version-1).
		Updates(map[string]interface{}{
			"paid_amount": state.PaidAmount.Amount(),
			"status":      string(o.Status()),
			"version":     state.Version,
			"updated_at":  state.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormObligationRepository implements ObligationRepository
var _ finance.ObligationRepository = (*GormObligationRepository)(nil)
