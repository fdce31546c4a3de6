package recovery

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt is an immutable snapshot of a payment received from a
// customer. A receipt may settle many invoices and an invoice may be
// settled by many receipts; the link between them is the allocation run.
type Receipt struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	VoucherNumber string          `json:"voucher_number"`
	ReceiptDate   time.Time       `json:"receipt_date"`
	Amount        decimal.Decimal `json:"amount"`
}

// Validate checks the receipt for malformed values
func (r *Receipt) Validate() error {
	if r.ID == uuid.Nil {
		return NewValidationError("receipt %s: id cannot be empty", r.VoucherNumber)
	}
	if r.CustomerID == uuid.Nil {
		return NewValidationError("receipt %s: customer id cannot be empty", r.VoucherNumber)
	}
	if r.VoucherNumber == "" {
		return NewValidationError("receipt %s: voucher number cannot be empty", r.ID)
	}
	if r.ReceiptDate.IsZero() {
		return NewValidationError("receipt %s: receipt date is required", r.VoucherNumber)
	}
	if !r.Amount.IsPositive() {
		return NewValidationError("receipt %s: amount must be positive, got %s", r.VoucherNumber, r.Amount)
	}
	return nil
}
