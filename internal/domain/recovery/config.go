package recovery

import (
	"github.com/shopspring/decimal"
)

// ThresholdBand maps an on-time percentage lower bound (inclusive) to a
// category. Bands are ordered best to worst and must be contiguous over
// [0,100]: each band covers [MinPercent, previous band's MinPercent).
type ThresholdBand struct {
	Category   CustomerCategory `json:"category"`
	MinPercent decimal.Decimal  `json:"min_percent"`
}

// OverrideRuleKind identifies the condition an override rule evaluates
type OverrideRuleKind string

const (
	// OverrideMaxOverdueDays fires when any single invoice was overdue
	// beyond the threshold, whether eventually paid late or still open
	OverrideMaxOverdueDays OverrideRuleKind = "MAX_OVERDUE_DAYS"
	// OverrideNoPaymentHistory fires for customers with zero paid
	// invoices and at least one unpaid invoice overdue beyond the
	// threshold
	OverrideNoPaymentHistory OverrideRuleKind = "NO_PAYMENT_HISTORY"
)

// IsValid checks if the rule kind is known
func (k OverrideRuleKind) IsValid() bool {
	return k == OverrideMaxOverdueDays || k == OverrideNoPaymentHistory
}

// OverrideRule is a hard rule that can force a category worse than the
// statistical threshold result, never better. Rules are evaluated in
// the order they are configured.
type OverrideRule struct {
	Kind          OverrideRuleKind `json:"kind"`
	Description   string           `json:"description"`
	ThresholdDays int              `json:"threshold_days"`
	Result        CustomerCategory `json:"result"`
}

// EngineConfig holds the classifier and allocation policy knobs. It is
// validated once at load time; an invalid configuration rejects the
// run before any customer data is processed.
type EngineConfig struct {
	// GracePeriodDays is how many days past due an invoice may be paid
	// and still count as on-time
	GracePeriodDays int `json:"grace_period_days"`
	// PartialPaymentThreshold: invoices whose outstanding remainder is
	// at or below this amount are treated as effectively paid
	PartialPaymentThreshold decimal.Decimal `json:"partial_payment_threshold"`
	// Bands maps on-time percentage to base category, ordered best to
	// worst
	Bands []ThresholdBand `json:"bands"`
	// OverrideRules are evaluated in order after the band mapping
	OverrideRules []OverrideRule `json:"override_rules"`
}

// DefaultEngineConfig returns the stock configuration: >=90% Alpha,
// >=75% Beta, >=50% Gamma, else Delta; 90-day overdue forces at least
// Gamma, 180 days with no payment history forces Delta.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		GracePeriodDays:         0,
		PartialPaymentThreshold: decimal.Zero,
		Bands: []ThresholdBand{
			{Category: CategoryAlpha, MinPercent: decimal.NewFromInt(90)},
			{Category: CategoryBeta, MinPercent: decimal.NewFromInt(75)},
			{Category: CategoryGamma, MinPercent: decimal.NewFromInt(50)},
			{Category: CategoryDelta, MinPercent: decimal.Zero},
		},
		OverrideRules: []OverrideRule{
			{
				Kind:          OverrideMaxOverdueDays,
				Description:   "invoice overdue beyond 90 days",
				ThresholdDays: 90,
				Result:        CategoryGamma,
			},
			{
				Kind:          OverrideNoPaymentHistory,
				Description:   "no payment history with invoice overdue beyond 180 days",
				ThresholdDays: 180,
				Result:        CategoryDelta,
			},
		},
	}
}

var hundred = decimal.NewFromInt(100)

// Validate checks the configuration for consistency. Threshold bands
// must be one per assignable category, strictly descending, within
// [0,100] and ending at 0 so the bands cover [0,100] with no gaps.
func (c EngineConfig) Validate() error {
	if c.GracePeriodDays < 0 {
		return NewConfigurationError("grace period cannot be negative")
	}
	if c.PartialPaymentThreshold.IsNegative() {
		return NewConfigurationError("partial payment threshold cannot be negative")
	}

	if len(c.Bands) != len(AssignableCategories()) {
		return NewConfigurationError("expected %d threshold bands, got %d", len(AssignableCategories()), len(c.Bands))
	}
	seen := make(map[CustomerCategory]bool, len(c.Bands))
	for i, band := range c.Bands {
		if !band.Category.IsAssignable() {
			return NewConfigurationError("band %d references unknown category %q", i, band.Category)
		}
		if seen[band.Category] {
			return NewConfigurationError("category %s has more than one band", band.Category)
		}
		seen[band.Category] = true
		if band.MinPercent.IsNegative() || band.MinPercent.GreaterThan(hundred) {
			return NewConfigurationError("band %s lower bound %s outside [0,100]", band.Category, band.MinPercent)
		}
		if i > 0 && band.MinPercent.GreaterThanOrEqual(c.Bands[i-1].MinPercent) {
			return NewConfigurationError("band lower bounds must be strictly descending, %s >= %s",
				band.MinPercent, c.Bands[i-1].MinPercent)
		}
	}
	if last := c.Bands[len(c.Bands)-1]; !last.MinPercent.IsZero() {
		return NewConfigurationError("bands leave a gap: lowest band starts at %s, must be 0", last.MinPercent)
	}

	for i, rule := range c.OverrideRules {
		if !rule.Kind.IsValid() {
			return NewConfigurationError("override rule %d has unknown kind %q", i, rule.Kind)
		}
		if rule.ThresholdDays <= 0 {
			return NewConfigurationError("override rule %d threshold must be positive", i)
		}
		if !rule.Result.IsAssignable() {
			return NewConfigurationError("override rule %d references unknown category %q", i, rule.Result)
		}
	}

	return nil
}

// BandFor maps an on-time percentage to its base category
func (c EngineConfig) BandFor(onTimePercent decimal.Decimal) CustomerCategory {
	for _, band := range c.Bands {
		if onTimePercent.GreaterThanOrEqual(band.MinPercent) {
			return band.Category
		}
	}
	// Unreachable with a validated config; the lowest band starts at 0.
	return c.Bands[len(c.Bands)-1].Category
}
