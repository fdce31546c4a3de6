package recovery

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is an immutable snapshot of a billing-system invoice as
// consumed by the recovery engine. The engine never mutates invoices;
// paid/outstanding splits are derived by the allocation run.
type Invoice struct {
	ID               uuid.UUID       `json:"id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceDate      time.Time       `json:"invoice_date"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentTermsDays *int            `json:"payment_terms_days"`         // nil when the billing system did not supply terms
	InterestRate     decimal.Decimal `json:"interest_rate"`              // percent per annum, simple daily interest
	InterestFrom     *time.Time      `json:"interest_from,omitempty"`    // policy-configured accrual start; nil means due date
}

// Validate checks the invoice for malformed values. A failed validation
// rejects the whole batch; missing payment terms are not a validation
// failure here because allocation does not need them.
func (i *Invoice) Validate() error {
	if i.ID == uuid.Nil {
		return NewValidationError("invoice %s: id cannot be empty", i.InvoiceNumber)
	}
	if i.CustomerID == uuid.Nil {
		return NewValidationError("invoice %s: customer id cannot be empty", i.InvoiceNumber)
	}
	if i.InvoiceNumber == "" {
		return NewValidationError("invoice %s: invoice number cannot be empty", i.ID)
	}
	if i.InvoiceDate.IsZero() {
		return NewValidationError("invoice %s: invoice date is required", i.InvoiceNumber)
	}
	if !i.Amount.IsPositive() {
		return NewValidationError("invoice %s: amount must be positive, got %s", i.InvoiceNumber, i.Amount)
	}
	if i.PaymentTermsDays != nil && *i.PaymentTermsDays < 0 {
		return NewValidationError("invoice %s: payment terms cannot be negative", i.InvoiceNumber)
	}
	if i.InterestRate.IsNegative() {
		return NewValidationError("invoice %s: interest rate cannot be negative", i.InvoiceNumber)
	}
	return nil
}

// DueDate derives the due date from invoice date and payment terms.
// Returns an incomplete-data error when payment terms are missing, so
// the caller can skip this invoice and continue the batch.
func (i *Invoice) DueDate() (time.Time, error) {
	if i.PaymentTermsDays == nil {
		return time.Time{}, NewIncompleteDataError("invoice %s: payment terms missing, cannot derive due date", i.InvoiceNumber)
	}
	return AddDays(i.InvoiceDate, *i.PaymentTermsDays), nil
}

// InterestAnchor returns the date interest starts accruing: the
// policy-configured InterestFrom when set, otherwise the due date.
func (i *Invoice) InterestAnchor() (time.Time, error) {
	if i.InterestFrom != nil {
		return DateOnly(*i.InterestFrom), nil
	}
	return i.DueDate()
}
