package recovery

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation links a receipt to an invoice with the amount consumed.
// One row exists per (invoice, receipt) pair where allocation occurred.
type Allocation struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	ReceiptID     uuid.UUID       `json:"receipt_id"`
	InvoiceNumber string          `json:"invoice_number"`
	VoucherNumber string          `json:"voucher_number"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"` // receipt date
}

// InvoiceAllocation is the per-invoice paid/outstanding split produced
// by an allocation run
type InvoiceAllocation struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	Amount        decimal.Decimal `json:"amount"`
	Paid          decimal.Decimal `json:"paid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	SettledOn     *time.Time      `json:"settled_on,omitempty"` // receipt date that zeroed the balance
	Allocations   []Allocation    `json:"allocations"`
}

// IsSettled returns true if the invoice is fully paid
func (ia *InvoiceAllocation) IsSettled() bool {
	return ia.Outstanding.IsZero()
}

// AllocationRun is the complete result of matching a customer's
// receipts against their invoices in FIFO order
type AllocationRun struct {
	Invoices        []InvoiceAllocation `json:"invoices"`    // FIFO order (invoice date, then number)
	Allocations     []Allocation        `json:"allocations"` // in the order they were made
	TotalAllocated  decimal.Decimal     `json:"total_allocated"`
	UnappliedCredit decimal.Decimal     `json:"unapplied_credit"` // receipt remainder exceeding total outstanding
}

// InvoiceAllocationFor returns the per-invoice split for the given
// invoice, or nil if the invoice was not part of the run
func (r *AllocationRun) InvoiceAllocationFor(invoiceID uuid.UUID) *InvoiceAllocation {
	for i := range r.Invoices {
		if r.Invoices[i].InvoiceID == invoiceID {
			return &r.Invoices[i]
		}
	}
	return nil
}

// AllocationsFor returns the allocation rows for the given invoice in
// chronological order
func (r *AllocationRun) AllocationsFor(invoiceID uuid.UUID) []Allocation {
	if ia := r.InvoiceAllocationFor(invoiceID); ia != nil {
		return ia.Allocations
	}
	return nil
}

// Allocate matches receipts to invoices in strict chronological (FIFO)
// order: receipts are walked oldest first and each consumes its amount
// against the oldest invoice with a remaining balance. Ordering ties
// are broken by invoice number and voucher number so the result is
// deterministic for identical inputs.
//
// A receipt dated before the invoice it eventually pays is allowed:
// allocation is amount-ordered, not causally gated, matching standard
// FIFO accounting practice.
//
// Validation is all-or-nothing: any malformed record rejects the whole
// batch before any allocation is computed.
func Allocate(invoices []Invoice, receipts []Receipt) (*AllocationRun, error) {
	for i := range invoices {
		if err := invoices[i].Validate(); err != nil {
			return nil, err
		}
	}
	for i := range receipts {
		if err := receipts[i].Validate(); err != nil {
			return nil, err
		}
	}

	sortedInvoices := make([]Invoice, len(invoices))
	copy(sortedInvoices, invoices)
	sort.SliceStable(sortedInvoices, func(i, j int) bool {
		di, dj := DateOnly(sortedInvoices[i].InvoiceDate), DateOnly(sortedInvoices[j].InvoiceDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return sortedInvoices[i].InvoiceNumber < sortedInvoices[j].InvoiceNumber
	})

	sortedReceipts := make([]Receipt, len(receipts))
	copy(sortedReceipts, receipts)
	sort.SliceStable(sortedReceipts, func(i, j int) bool {
		di, dj := DateOnly(sortedReceipts[i].ReceiptDate), DateOnly(sortedReceipts[j].ReceiptDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return sortedReceipts[i].VoucherNumber < sortedReceipts[j].VoucherNumber
	})

	run := &AllocationRun{
		Invoices:        make([]InvoiceAllocation, len(sortedInvoices)),
		Allocations:     make([]Allocation, 0),
		TotalAllocated:  decimal.Zero,
		UnappliedCredit: decimal.Zero,
	}
	for i, inv := range sortedInvoices {
		run.Invoices[i] = InvoiceAllocation{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceDate:   DateOnly(inv.InvoiceDate),
			Amount:        inv.Amount,
			Paid:          decimal.Zero,
			Outstanding:   inv.Amount,
			Allocations:   make([]Allocation, 0),
		}
	}

	next := 0 // index of the oldest invoice with remaining balance
	for _, rcpt := range sortedReceipts {
		remaining := rcpt.Amount
		for next < len(run.Invoices) && remaining.IsPositive() {
			target := &run.Invoices[next]
			if target.Outstanding.IsZero() {
				next++
				continue
			}

			amount := decimal.Min(remaining, target.Outstanding)
			alloc := Allocation{
				InvoiceID:     target.InvoiceID,
				ReceiptID:     rcpt.ID,
				InvoiceNumber: target.InvoiceNumber,
				VoucherNumber: rcpt.VoucherNumber,
				Amount:        amount,
				Date:          DateOnly(rcpt.ReceiptDate),
			}
			target.Allocations = append(target.Allocations, alloc)
			target.Paid = target.Paid.Add(amount)
			target.Outstanding = target.Amount.Sub(target.Paid)
			if target.Outstanding.IsZero() {
				settled := DateOnly(rcpt.ReceiptDate)
				target.SettledOn = &settled
			}

			run.Allocations = append(run.Allocations, alloc)
			run.TotalAllocated = run.TotalAllocated.Add(amount)
			remaining = remaining.Sub(amount)
		}

		// Receipt remainder with no outstanding invoice left is
		// reported, never silently dropped.
		if remaining.IsPositive() {
			run.UnappliedCredit = run.UnappliedCredit.Add(remaining)
		}
	}

	return run, nil
}
