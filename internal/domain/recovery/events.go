package recovery

import (
	"github.com/arcollect/backend/internal/domain/shared"
)

// Event types for the recovery domain
const (
	EventTypeCategoryChanged = "CustomerCategoryChanged"
)

// AggregateTypeCustomerAccount is the aggregate type for customer accounts
const AggregateTypeCustomerAccount = "CustomerAccount"

// CategoryChangedEvent is published when a customer's risk category
// changes through an explicit apply
type CategoryChangedEvent struct {
	shared.BaseDomainEvent
	CustomerID   string           `json:"customer_id"`
	CustomerName string           `json:"customer_name"`
	OldCategory  CustomerCategory `json:"old_category"`
	NewCategory  CustomerCategory `json:"new_category"`
	Reason       string           `json:"reason"`
	DaysOverdue  int              `json:"days_overdue"`
}

// NewCategoryChangedEvent creates a new CategoryChangedEvent
func NewCategoryChangedEvent(account *CustomerAccount, from, to CustomerCategory, reason string, daysOverdue int) *CategoryChangedEvent {
	return &CategoryChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryChanged, AggregateTypeCustomerAccount, account.ID, account.TenantID),
		CustomerID:      account.CustomerID.String(),
		CustomerName:    account.CustomerName,
		OldCategory:     from,
		NewCategory:     to,
		Reason:          reason,
		DaysOverdue:     daysOverdue,
	}
}
