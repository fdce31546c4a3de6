package recovery

import (
	"context"

	"github.com/google/uuid"
)

// InvoiceRepository provides read access to invoice snapshots. The
// engine itself performs no I/O; the surrounding system presents a
// consistent snapshot per customer.
type InvoiceRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]Invoice, error)
	Save(ctx context.Context, tenantID uuid.UUID, invoice *Invoice) error
}

// ReceiptRepository provides read access to receipt snapshots
type ReceiptRepository interface {
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]Receipt, error)
	Save(ctx context.Context, tenantID uuid.UUID, receipt *Receipt) error
}

// CustomerAccountRepository manages customer accounts and their
// current category
type CustomerAccountRepository interface {
	FindByCustomerID(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerAccount, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]CustomerAccount, error)
	Save(ctx context.Context, account *CustomerAccount) error
	Update(ctx context.Context, account *CustomerAccount) error
}

// CategoryChangeRepository is the append-only audit trail for category
// transitions
type CategoryChangeRepository interface {
	Append(ctx context.Context, change *CategoryChange) error
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) ([]CategoryChange, error)
}
