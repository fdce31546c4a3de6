package persistence

import (
	"context"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCategoryChangeRepository implements
// recovery.CategoryChangeRepository using GORM. The table is append-only.
type GormCategoryChangeRepository struct {
	db *gorm.DB
}

// NewGormCategoryChangeRepository creates a new GormCategoryChangeRepository
func NewGormCategoryChangeRepository(db *gorm.DB) *GormCategoryChangeRepository {
	return &GormCategoryChangeRepository{db: db}
}

// Append inserts a new category change audit entry
func (r *GormCategoryChangeRepository) Append(ctx context.Context, change *recovery.CategoryChange) error {
	model := models.CategoryChangeModelFromDomain(change)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByCustomer returns the category change history of a customer
// within a tenant, oldest first
func (r *GormCategoryChangeRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]recovery.CategoryChange, error) {
	var rows []models.CategoryChangeModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("changed_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	changes := make([]recovery.CategoryChange, len(rows))
	for i := range rows {
		changes[i] = rows[i].ToDomain()
	}
	return changes, nil
}
