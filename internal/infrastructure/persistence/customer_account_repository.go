package persistence

import (
	"context"
	"errors"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/domain/shared"
	"github.com/arcollect/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerAccountRepository implements
// recovery.CustomerAccountRepository using GORM
type GormCustomerAccountRepository struct {
	db *gorm.DB
}

// NewGormCustomerAccountRepository creates a new GormCustomerAccountRepository
func NewGormCustomerAccountRepository(db *gorm.DB) *GormCustomerAccountRepository {
	return &GormCustomerAccountRepository{db: db}
}

// FindByCustomerID finds an account by customer ID within a tenant.
// Returns nil when no account exists yet.
func (r *GormCustomerAccountRepository) FindByCustomerID(ctx context.Context, tenantID, customerID uuid.UUID) (*recovery.CustomerAccount, error) {
	var model models.CustomerAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns all customer accounts of a tenant
func (r *GormCustomerAccountRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]recovery.CustomerAccount, error) {
	var rows []models.CustomerAccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("customer_name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make([]recovery.CustomerAccount, len(rows))
	for i := range rows {
		accounts[i] = *rows[i].ToDomain()
	}
	return accounts, nil
}

// Save inserts a new customer account
func (r *GormCustomerAccountRepository) Save(ctx context.Context, account *recovery.CustomerAccount) error {
	model := models.CustomerAccountModelFromDomain(account)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists an account with optimistic locking. The domain
// increments the version before calling Update; the row must still hold
// the previous version or the update is rejected.
func (r *GormCustomerAccountRepository) Update(ctx context.Context, account *recovery.CustomerAccount) error {
	model := models.CustomerAccountModelFromDomain(account)
	result := r.db.WithContext(ctx).
		Model(&models.CustomerAccountModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]any{
			"customer_name":  model.CustomerName,
			"category":       model.Category,
			"categorized_at": model.CategorizedAt,
			"updated_at":     model.UpdatedAt,
			"version":        model.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
