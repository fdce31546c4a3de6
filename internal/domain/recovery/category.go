package recovery

import (
	"time"

	"github.com/arcollect/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerCategory is the risk category assigned to a customer from
// their payment track record. Ordered best to worst: Alpha, Beta,
// Gamma, Delta. New is a sentinel for customers with no qualifying
// payment history.
type CustomerCategory string

const (
	CategoryNew   CustomerCategory = "NEW"
	CategoryAlpha CustomerCategory = "ALPHA"
	CategoryBeta  CustomerCategory = "BETA"
	CategoryGamma CustomerCategory = "GAMMA"
	CategoryDelta CustomerCategory = "DELTA"
)

// IsValid checks if the category is a known value
func (c CustomerCategory) IsValid() bool {
	switch c {
	case CategoryNew, CategoryAlpha, CategoryBeta, CategoryGamma, CategoryDelta:
		return true
	}
	return false
}

// IsAssignable returns true for categories a customer can be moved to
// through apply. New is computed, never assigned.
func (c CustomerCategory) IsAssignable() bool {
	switch c {
	case CategoryAlpha, CategoryBeta, CategoryGamma, CategoryDelta:
		return true
	}
	return false
}

// String returns the string representation
func (c CustomerCategory) String() string {
	return string(c)
}

// rank orders assignable categories from best (0) to worst (3)
func (c CustomerCategory) rank() int {
	switch c {
	case CategoryAlpha:
		return 0
	case CategoryBeta:
		return 1
	case CategoryGamma:
		return 2
	case CategoryDelta:
		return 3
	}
	return -1
}

// WorseThan returns true if c is a worse category than other. Only
// meaningful for assignable categories.
func (c CustomerCategory) WorseThan(other CustomerCategory) bool {
	return c.rank() > other.rank()
}

// WorstCategory returns the worse of two assignable categories
func WorstCategory(a, b CustomerCategory) CustomerCategory {
	if b.WorseThan(a) {
		return b
	}
	return a
}

// AssignableCategories returns the assignable categories best to worst
func AssignableCategories() []CustomerCategory {
	return []CustomerCategory{CategoryAlpha, CategoryBeta, CategoryGamma, CategoryDelta}
}

// CategoryChange is one append-only audit trail entry for a customer
// category transition
type CategoryChange struct {
	ID           uuid.UUID        `json:"id"`
	TenantID     uuid.UUID        `json:"tenant_id"`
	CustomerID   uuid.UUID        `json:"customer_id"`
	FromCategory CustomerCategory `json:"from_category"`
	ToCategory   CustomerCategory `json:"to_category"`
	Reason       string           `json:"reason"`
	DaysOverdue  int              `json:"days_overdue"` // max days overdue at time of change
	ChangedAt    time.Time        `json:"changed_at"`
}

// CustomerAccount is the aggregate holding a customer's current risk
// category. The classifier only recommends; transitions happen through
// ApplyCategory and are always audit-logged.
type CustomerAccount struct {
	shared.TenantAggregateRoot
	CustomerID    uuid.UUID        `json:"customer_id"`
	CustomerName  string           `json:"customer_name"`
	Category      CustomerCategory `json:"category"`
	CategorizedAt *time.Time       `json:"categorized_at,omitempty"`
}

// NewCustomerAccount creates a customer account starting in the New
// category
func NewCustomerAccount(tenantID, customerID uuid.UUID, customerName string) (*CustomerAccount, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if customerName == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}
	return &CustomerAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CustomerID:          customerID,
		CustomerName:        customerName,
		Category:            CategoryNew,
	}, nil
}

// ApplyCategory transitions the account to a new category, returning
// the audit entry to persist. Any category can transition to any other;
// there is no terminal state.
func (a *CustomerAccount) ApplyCategory(to CustomerCategory, reason string, daysOverdue int) (*CategoryChange, error) {
	if !to.IsAssignable() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Category "+to.String()+" cannot be assigned")
	}
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Change reason is required")
	}
	if daysOverdue < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Days overdue cannot be negative")
	}

	now := time.Now()
	change := &CategoryChange{
		ID:           uuid.New(),
		TenantID:     a.TenantID,
		CustomerID:   a.CustomerID,
		FromCategory: a.Category,
		ToCategory:   to,
		Reason:       reason,
		DaysOverdue:  daysOverdue,
		ChangedAt:    now,
	}

	from := a.Category
	a.Category = to
	a.CategorizedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()

	a.AddDomainEvent(NewCategoryChangedEvent(a, from, to, reason, daysOverdue))

	return change, nil
}

// IsNew returns true if the account has never been categorized
func (a *CustomerAccount) IsNew() bool {
	return a.Category == CategoryNew
}
