package recovery

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceOutcomeStatus classifies an invoice's payment outcome
type InvoiceOutcomeStatus string

const (
	// OutcomePaid means allocations fully settled the invoice
	OutcomePaid InvoiceOutcomeStatus = "PAID"
	// OutcomeEffectivelyPaid means the outstanding remainder is at or
	// below the partial-payment threshold
	OutcomeEffectivelyPaid InvoiceOutcomeStatus = "EFFECTIVELY_PAID"
	// OutcomeUnpaid means a balance above the threshold remains open
	OutcomeUnpaid InvoiceOutcomeStatus = "UNPAID"
	// OutcomeSkipped means the invoice lacks data needed to assess it
	OutcomeSkipped InvoiceOutcomeStatus = "SKIPPED"
)

// InvoiceOutcome is the per-invoice fact row a recommendation is built
// from
type InvoiceOutcome struct {
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	InvoiceDate   time.Time            `json:"invoice_date"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	Paid          decimal.Decimal      `json:"paid"`
	Outstanding   decimal.Decimal      `json:"outstanding"`
	Status        InvoiceOutcomeStatus `json:"status"`
	SettledOn     *time.Time           `json:"settled_on,omitempty"`
	DelayDays     *int                 `json:"delay_days,omitempty"` // negative for early payment
	OnTime        *bool                `json:"on_time,omitempty"`
	OverdueDays   int                  `json:"overdue_days"` // days past due as of the evaluation date, unpaid only
}

// CategoryRecommendation is the classifier's output: computed on
// demand, never stored until applied
type CategoryRecommendation struct {
	CustomerID          uuid.UUID        `json:"customer_id"`
	CurrentCategory     CustomerCategory `json:"current_category"`
	RecommendedCategory CustomerCategory `json:"recommended_category"`
	OnTimePercentage    decimal.Decimal  `json:"on_time_percentage"` // rounded to 2 decimals
	OverrideApplied     bool             `json:"override_applied"`
	OverrideReason      *string          `json:"override_reason,omitempty"`
	MultipleOverrides   bool             `json:"multiple_overrides"` // more than one rule was eligible
	ChangeReason        string           `json:"change_reason"`
	WillChange          bool             `json:"will_change"`
	MaxDaysOverdue      int              `json:"max_days_overdue"` // feeds the audit entry on apply
	InvoiceDetails      []InvoiceOutcome `json:"invoice_details"`
	ConsideredCount     int              `json:"considered_count"`
	OnTimeCount         int              `json:"on_time_count"`
	LateCount           int              `json:"late_count"`
	UnpaidCount         int              `json:"unpaid_count"`
	SkippedCount        int              `json:"skipped_count"`
	RecordErrors        []RecordError    `json:"record_errors,omitempty"`
}

// Classify computes a category recommendation from a customer's full
// invoice history and its allocation run. The classifier never mutates
// the customer's current category.
//
// Considered invoices are those fully paid or effectively paid (the
// outstanding remainder at or below the partial-payment threshold);
// never-paid invoices feed the unpaid count and override rules only.
// Invoices missing payment terms are skipped with a record error and
// the rest of the history still classifies.
func (cfg EngineConfig) Classify(customerID uuid.UUID, current CustomerCategory, invoices []Invoice, run *AllocationRun, asOf time.Time) *CategoryRecommendation {
	rec := &CategoryRecommendation{
		CustomerID:      customerID,
		CurrentCategory: current,
		InvoiceDetails:  make([]InvoiceOutcome, 0, len(invoices)),
	}
	asOfDate := DateOnly(asOf)

	byID := make(map[uuid.UUID]*Invoice, len(invoices))
	for i := range invoices {
		byID[invoices[i].ID] = &invoices[i]
	}

	maxOverdue := 0
	for i := range run.Invoices {
		ia := &run.Invoices[i]
		inv := byID[ia.InvoiceID]
		if inv == nil {
			continue
		}

		outcome := InvoiceOutcome{
			InvoiceID:     ia.InvoiceID,
			InvoiceNumber: ia.InvoiceNumber,
			InvoiceDate:   ia.InvoiceDate,
			Amount:        ia.Amount,
			Paid:          ia.Paid,
			Outstanding:   ia.Outstanding,
		}

		due, err := inv.DueDate()
		if err != nil {
			outcome.Status = OutcomeSkipped
			rec.SkippedCount++
			rec.RecordErrors = append(rec.RecordErrors, NewRecordError("invoice", inv.ID, inv.InvoiceNumber, err))
			rec.InvoiceDetails = append(rec.InvoiceDetails, outcome)
			continue
		}
		outcome.DueDate = &due

		switch {
		case ia.IsSettled():
			outcome.Status = OutcomePaid
			outcome.SettledOn = ia.SettledOn
			delay := DaysBetween(due, *ia.SettledOn)
			onTime := delay <= cfg.GracePeriodDays
			outcome.DelayDays = &delay
			outcome.OnTime = &onTime
			rec.ConsideredCount++
			if onTime {
				rec.OnTimeCount++
			} else {
				rec.LateCount++
				if delay > maxOverdue {
					maxOverdue = delay
				}
			}

		case cfg.PartialPaymentThreshold.IsPositive() && ia.Outstanding.LessThanOrEqual(cfg.PartialPaymentThreshold):
			// Small remainder: the invoice counts as paid, completed on
			// the last allocation date (or the due date when nothing was
			// ever allocated).
			outcome.Status = OutcomeEffectivelyPaid
			completed := due
			if n := len(ia.Allocations); n > 0 {
				completed = DateOnly(ia.Allocations[n-1].Date)
			}
			outcome.SettledOn = &completed
			delay := DaysBetween(due, completed)
			onTime := delay <= cfg.GracePeriodDays
			outcome.DelayDays = &delay
			outcome.OnTime = &onTime
			rec.ConsideredCount++
			if onTime {
				rec.OnTimeCount++
			} else {
				rec.LateCount++
				if delay > maxOverdue {
					maxOverdue = delay
				}
			}

		default:
			outcome.Status = OutcomeUnpaid
			overdue := DaysBetween(due, asOfDate)
			if overdue < 0 {
				overdue = 0
			}
			outcome.OverdueDays = overdue
			rec.UnpaidCount++
			if overdue > maxOverdue {
				maxOverdue = overdue
			}
		}

		rec.InvoiceDetails = append(rec.InvoiceDetails, outcome)
	}
	rec.MaxDaysOverdue = maxOverdue

	// No history at all: the customer is New and excluded from bulk
	// apply until they accrue history.
	if len(rec.InvoiceDetails) == 0 {
		rec.RecommendedCategory = CategoryNew
		rec.OnTimePercentage = decimal.Zero
		rec.ChangeReason = "no invoice history"
		rec.WillChange = current != CategoryNew
		return rec
	}

	if rec.ConsideredCount > 0 {
		rec.OnTimePercentage = decimal.NewFromInt(int64(rec.OnTimeCount)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(rec.ConsideredCount))).
			Round(2)
	} else {
		rec.OnTimePercentage = decimal.Zero
	}

	base := cfg.BandFor(rec.OnTimePercentage)
	rec.RecommendedCategory = base
	rec.ChangeReason = fmt.Sprintf("on-time %s%% of %d paid invoices", rec.OnTimePercentage.StringFixed(2), rec.ConsideredCount)

	// Override rules can only move the category toward worse, never
	// better, than the statistical result. When several fire, the one
	// producing the final (worst) category is recorded.
	fired := 0
	var winning *OverrideRule
	for i := range cfg.OverrideRules {
		rule := &cfg.OverrideRules[i]
		if !cfg.ruleTriggers(rule, rec) {
			continue
		}
		fired++
		if rule.Result.WorseThan(rec.RecommendedCategory) {
			rec.RecommendedCategory = rule.Result
			winning = rule
		}
	}
	if winning != nil {
		rec.OverrideApplied = true
		reason := winning.Description
		rec.OverrideReason = &reason
		rec.ChangeReason = reason
		rec.MultipleOverrides = fired > 1
	}

	rec.WillChange = rec.RecommendedCategory != current
	return rec
}

// ruleTriggers evaluates one override rule against the assessed history
func (cfg EngineConfig) ruleTriggers(rule *OverrideRule, rec *CategoryRecommendation) bool {
	switch rule.Kind {
	case OverrideMaxOverdueDays:
		for i := range rec.InvoiceDetails {
			d := &rec.InvoiceDetails[i]
			if d.Status == OutcomeUnpaid && d.OverdueDays > rule.ThresholdDays {
				return true
			}
			if d.DelayDays != nil && *d.DelayDays > rule.ThresholdDays {
				return true
			}
		}
	case OverrideNoPaymentHistory:
		if rec.ConsideredCount > 0 {
			return false
		}
		for i := range rec.InvoiceDetails {
			d := &rec.InvoiceDetails[i]
			if d.Status == OutcomeUnpaid && d.OverdueDays > rule.ThresholdDays {
				return true
			}
		}
	}
	return false
}
