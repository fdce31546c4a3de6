package persistence

import (
	"context"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReceiptRepository implements recovery.ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// FindByCustomer returns all receipts of a customer within a tenant,
// ordered by receipt date then voucher number
func (r *GormReceiptRepository) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]recovery.Receipt, error) {
	var rows []models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("receipt_date ASC, voucher_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	receipts := make([]recovery.Receipt, len(rows))
	for i := range rows {
		receipts[i] = rows[i].ToDomain()
	}
	return receipts, nil
}

// Save inserts or updates a receipt
func (r *GormReceiptRepository) Save(ctx context.Context, tenantID uuid.UUID, receipt *recovery.Receipt) error {
	model := models.ReceiptModelFromDomain(tenantID, receipt)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}
