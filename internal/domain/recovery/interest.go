package recovery

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodKind tags a row in the interest period table
type PeriodKind string

const (
	// PeriodKindAccrual is a regular balance period accruing interest
	PeriodKindAccrual PeriodKind = "ACCRUAL"
	// PeriodKindDueDate is the zero-interest marker row at the boundary
	// where interest begins accruing, kept for display purposes
	PeriodKindDueDate PeriodKind = "DUE_DATE"
)

// InterestPeriod is one contiguous balance period of an invoice's
// overdue life. Interest is kept at full precision; rounding happens
// once at the output boundary.
type InterestPeriod struct {
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"` // exclusive
	Days     int             `json:"days"`
	Balance  decimal.Decimal `json:"balance"`
	Interest decimal.Decimal `json:"interest"`
	Kind     PeriodKind      `json:"kind"`
}

// InterestBreakdown is the full audit record of an invoice's interest
// computation: invoice facts, allocation rows, the period table and the
// rounded total.
type InterestBreakdown struct {
	InvoiceID         uuid.UUID        `json:"invoice_id"`
	InvoiceNumber     string           `json:"invoice_number"`
	InvoiceDate       time.Time        `json:"invoice_date"`
	DueDate           time.Time        `json:"due_date"`
	InterestFrom      time.Time        `json:"interest_from"`
	AsOf              time.Time        `json:"as_of"`
	AnnualRatePercent decimal.Decimal  `json:"annual_rate_percent"`
	Amount            decimal.Decimal  `json:"amount"`
	Allocations       []Allocation     `json:"allocations"`
	Periods           []InterestPeriod `json:"periods"`
	TotalInterest     decimal.Decimal  `json:"total_interest"` // rounded to 2 decimal places
	FullyPaid         bool             `json:"fully_paid"`
	SettledOn         *time.Time       `json:"settled_on,omitempty"`
}

// daysPerYear is fixed for simple daily interest. The 365-day
// convention is part of the contract; 360-day and compounding variants
// are deliberately not supported.
const daysPerYear = 365

var interestDivisor = decimal.NewFromInt(100 * daysPerYear)

// periodInterest computes simple daily interest for one period:
// balance * annualRate * days / (100 * 365), unrounded.
func periodInterest(balance, annualRate decimal.Decimal, days int) decimal.Decimal {
	return balance.Mul(annualRate).Mul(decimal.NewFromInt(int64(days))).Div(interestDivisor)
}

// balanceEvent is a date on which the invoice balance changed, with the
// total amount paid on that date. Same-date allocations are folded into
// one event.
type balanceEvent struct {
	date time.Time
	paid decimal.Decimal
}

// ComputeInterest partitions an invoice's overdue life into contiguous
// balance periods and computes simple daily interest per period.
//
// The accrual anchor is the invoice's InterestAnchor (policy date or
// due date). Allocations on or before the anchor fold into the opening
// balance; each later allocation date closes one period and opens the
// next. If the invoice is not fully paid as of asOf, a final open
// period runs to asOf. asOf is injected by the caller so results are
// reproducible; allocations dated after asOf are ignored.
func ComputeInterest(inv Invoice, allocations []Allocation, asOf time.Time) (*InterestBreakdown, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	anchor, err := inv.InterestAnchor()
	if err != nil {
		return nil, err
	}
	dueDate, err := inv.DueDate()
	if err != nil {
		return nil, err
	}

	asOfDate := DateOnly(asOf)

	own := make([]Allocation, 0, len(allocations))
	for _, a := range allocations {
		if a.InvoiceID != inv.ID {
			continue
		}
		if !a.Amount.IsPositive() {
			return nil, NewValidationError("invoice %s: allocation from receipt %s must be positive", inv.InvoiceNumber, a.VoucherNumber)
		}
		own = append(own, a)
	}
	sort.SliceStable(own, func(i, j int) bool {
		di, dj := DateOnly(own[i].Date), DateOnly(own[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return own[i].VoucherNumber < own[j].VoucherNumber
	})

	bd := &InterestBreakdown{
		InvoiceID:         inv.ID,
		InvoiceNumber:     inv.InvoiceNumber,
		InvoiceDate:       DateOnly(inv.InvoiceDate),
		DueDate:           dueDate,
		InterestFrom:      anchor,
		AsOf:              asOfDate,
		AnnualRatePercent: inv.InterestRate,
		Amount:            inv.Amount,
		Allocations:       own,
		Periods:           make([]InterestPeriod, 0),
		TotalInterest:     decimal.Zero,
	}

	// Fold same-date allocations into balance events, splitting them
	// into the opening balance (on/before anchor) and period breaks.
	opening := inv.Amount
	events := make([]balanceEvent, 0, len(own))
	for _, a := range own {
		d := DateOnly(a.Date)
		if d.After(asOfDate) {
			continue
		}
		if !d.After(anchor) {
			opening = opening.Sub(a.Amount)
			continue
		}
		if n := len(events); n > 0 && events[n-1].date.Equal(d) {
			events[n-1].paid = events[n-1].paid.Add(a.Amount)
		} else {
			events = append(events, balanceEvent{date: d, paid: a.Amount})
		}
	}

	paidInFull, settledOn := settlementAsOf(inv, own, asOfDate)
	bd.FullyPaid = paidInFull
	bd.SettledOn = settledOn

	// Fully settled before interest ever started: zero periods, zero
	// interest.
	if !opening.IsPositive() {
		return bd, nil
	}

	// Interest has not started yet: the invoice is simply not due.
	// Zero periods, zero interest.
	if asOfDate.Before(anchor) {
		return bd, nil
	}

	// Marker row at the boundary where interest begins accruing. It
	// carries no interest itself.
	bd.Periods = append(bd.Periods, InterestPeriod{
		Start:   anchor,
		End:     anchor,
		Days:    0,
		Balance: opening,
		Kind:    PeriodKindDueDate,
	})

	total := decimal.Zero
	start := anchor
	balance := opening
	for _, ev := range events {
		days := DaysBetween(start, ev.date)
		if days < 0 {
			return nil, NewValidationError("invoice %s: allocation on %s produces a negative period",
				inv.InvoiceNumber, ev.date.Format("2006-01-02"))
		}
		interest := periodInterest(balance, inv.InterestRate, days)
		bd.Periods = append(bd.Periods, InterestPeriod{
			Start:    start,
			End:      ev.date,
			Days:     days,
			Balance:  balance,
			Interest: interest,
			Kind:     PeriodKindAccrual,
		})
		total = total.Add(interest)

		start = ev.date
		balance = balance.Sub(ev.paid)
		if !balance.IsPositive() {
			break
		}
	}

	// Final open period up to asOf if a balance remains.
	if balance.IsPositive() {
		days := DaysBetween(start, asOfDate)
		if days < 0 {
			return nil, NewValidationError("invoice %s: open period from %s to %s is negative",
				inv.InvoiceNumber, start.Format("2006-01-02"), asOfDate.Format("2006-01-02"))
		}
		interest := periodInterest(balance, inv.InterestRate, days)
		bd.Periods = append(bd.Periods, InterestPeriod{
			Start:    start,
			End:      asOfDate,
			Days:     days,
			Balance:  balance,
			Interest: interest,
			Kind:     PeriodKindAccrual,
		})
		total = total.Add(interest)
	}

	bd.TotalInterest = total.Round(2)
	return bd, nil
}

// settlementAsOf reports whether the invoice is fully paid by asOf and
// on which date the cumulative payments reached the invoice amount.
func settlementAsOf(inv Invoice, sorted []Allocation, asOf time.Time) (bool, *time.Time) {
	paid := decimal.Zero
	for _, a := range sorted {
		d := DateOnly(a.Date)
		if d.After(asOf) {
			break
		}
		paid = paid.Add(a.Amount)
		if paid.GreaterThanOrEqual(inv.Amount) {
			settled := d
			return true, &settled
		}
	}
	return false, nil
}
