package models

import (
	"time"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for invoices
type InvoiceModel struct {
	BaseModel
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_tenant_number,priority:1"`
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceNumber    string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	InvoiceDate      time.Time       `gorm:"not null;index"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaymentTermsDays *int
	InterestRate     decimal.Decimal `gorm:"type:decimal(9,4);not null"`
	InterestFrom     *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() recovery.Invoice {
	return recovery.Invoice{
		ID:               m.ID,
		CustomerID:       m.CustomerID,
		InvoiceNumber:    m.InvoiceNumber,
		InvoiceDate:      m.InvoiceDate,
		Amount:           m.Amount,
		PaymentTermsDays: m.PaymentTermsDays,
		InterestRate:     m.InterestRate,
		InterestFrom:     m.InterestFrom,
	}
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(tenantID uuid.UUID, inv *recovery.Invoice) *InvoiceModel {
	return &InvoiceModel{
		BaseModel:        BaseModel{ID: inv.ID},
		TenantID:         tenantID,
		CustomerID:       inv.CustomerID,
		InvoiceNumber:    inv.InvoiceNumber,
		InvoiceDate:      inv.InvoiceDate,
		Amount:           inv.Amount,
		PaymentTermsDays: inv.PaymentTermsDays,
		InterestRate:     inv.InterestRate,
		InterestFrom:     inv.InterestFrom,
	}
}

// ReceiptModel is the persistence model for receipts
type ReceiptModel struct {
	BaseModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_tenant_voucher,priority:1"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	VoucherNumber string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_receipt_tenant_voucher,priority:2"`
	ReceiptDate   time.Time       `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt
func (m *ReceiptModel) ToDomain() recovery.Receipt {
	return recovery.Receipt{
		ID:            m.ID,
		CustomerID:    m.CustomerID,
		VoucherNumber: m.VoucherNumber,
		ReceiptDate:   m.ReceiptDate,
		Amount:        m.Amount,
	}
}

// ReceiptModelFromDomain creates a persistence model from a domain Receipt
func ReceiptModelFromDomain(tenantID uuid.UUID, r *recovery.Receipt) *ReceiptModel {
	return &ReceiptModel{
		BaseModel:     BaseModel{ID: r.ID},
		TenantID:      tenantID,
		CustomerID:    r.CustomerID,
		VoucherNumber: r.VoucherNumber,
		ReceiptDate:   r.ReceiptDate,
		Amount:        r.Amount,
	}
}

// CustomerAccountModel is the persistence model for the CustomerAccount
// aggregate root
type CustomerAccountModel struct {
	TenantAggregateModel
	CustomerID    uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_account_tenant_customer,priority:2"`
	CustomerName  string                    `gorm:"type:varchar(200);not null"`
	Category      recovery.CustomerCategory `gorm:"type:varchar(10);not null;default:'NEW';index"`
	CategorizedAt *time.Time
}

// TableName returns the table name for GORM
func (CustomerAccountModel) TableName() string {
	return "customer_accounts"
}

// ToDomain converts the persistence model to a domain CustomerAccount
func (m *CustomerAccountModel) ToDomain() *recovery.CustomerAccount {
	account := &recovery.CustomerAccount{
		CustomerID:    m.CustomerID,
		CustomerName:  m.CustomerName,
		Category:      m.Category,
		CategorizedAt: m.CategorizedAt,
	}
	m.PopulateTenantAggregateRoot(&account.TenantAggregateRoot)
	return account
}

// FromDomain populates the persistence model from a domain CustomerAccount
func (m *CustomerAccountModel) FromDomain(a *recovery.CustomerAccount) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.CustomerID = a.CustomerID
	m.CustomerName = a.CustomerName
	m.Category = a.Category
	m.CategorizedAt = a.CategorizedAt
}

// CustomerAccountModelFromDomain creates a new persistence model from a
// domain CustomerAccount
func CustomerAccountModelFromDomain(a *recovery.CustomerAccount) *CustomerAccountModel {
	m := &CustomerAccountModel{}
	m.FromDomain(a)
	return m
}

// CategoryChangeModel is the persistence model for the append-only
// category change audit trail
type CategoryChangeModel struct {
	ID           uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID                 `gorm:"type:uuid;not null;index:idx_change_tenant_customer,priority:1"`
	CustomerID   uuid.UUID                 `gorm:"type:uuid;not null;index:idx_change_tenant_customer,priority:2"`
	FromCategory recovery.CustomerCategory `gorm:"type:varchar(10);not null"`
	ToCategory   recovery.CustomerCategory `gorm:"type:varchar(10);not null"`
	Reason       string                    `gorm:"type:varchar(500);not null"`
	DaysOverdue  int                       `gorm:"not null;default:0"`
	ChangedAt    time.Time                 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CategoryChangeModel) TableName() string {
	return "category_changes"
}

// ToDomain converts the persistence model to a domain CategoryChange
func (m *CategoryChangeModel) ToDomain() recovery.CategoryChange {
	return recovery.CategoryChange{
		ID:           m.ID,
		TenantID:     m.TenantID,
		CustomerID:   m.CustomerID,
		FromCategory: m.FromCategory,
		ToCategory:   m.ToCategory,
		Reason:       m.Reason,
		DaysOverdue:  m.DaysOverdue,
		ChangedAt:    m.ChangedAt,
	}
}

// CategoryChangeModelFromDomain creates a persistence model from a
// domain CategoryChange
func CategoryChangeModelFromDomain(c *recovery.CategoryChange) *CategoryChangeModel {
	return &CategoryChangeModel{
		ID:           c.ID,
		TenantID:     c.TenantID,
		CustomerID:   c.CustomerID,
		FromCategory: c.FromCategory,
		ToCategory:   c.ToCategory,
		Reason:       c.Reason,
		DaysOverdue:  c.DaysOverdue,
		ChangedAt:    c.ChangedAt,
	}
}

// AllModels returns every model for auto-migration
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&ReceiptModel{},
		&CustomerAccountModel{},
		&CategoryChangeModel{},
	}
}
