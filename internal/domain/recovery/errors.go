package recovery

import (
	"errors"
	"fmt"

	"github.com/arcollect/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Error codes for the recovery engine error taxonomy.
// Validation and configuration errors abort a run; incomplete-data
// errors are collected per record and the run continues.
const (
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeIncompleteData = "INCOMPLETE_DATA"
	ErrCodeConfiguration  = "INVALID_CONFIG"
)

// NewValidationError creates a validation error for malformed or
// logically inconsistent input
func NewValidationError(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// NewIncompleteDataError creates an error for a record lacking fields
// needed for a calculation
func NewIncompleteDataError(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(ErrCodeIncompleteData, fmt.Sprintf(format, args...))
}

// NewConfigurationError creates an error for invalid engine configuration
func NewConfigurationError(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// IsValidationError returns true if err carries the validation error code
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsIncompleteDataError returns true if err carries the incomplete-data error code
func IsIncompleteDataError(err error) bool {
	return hasCode(err, ErrCodeIncompleteData)
}

// IsConfigurationError returns true if err carries the configuration error code
func IsConfigurationError(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

func hasCode(err error, code string) bool {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// RecordError describes a record-level failure collected during a run.
// Record errors never abort the batch; they are returned alongside the
// successful results.
type RecordError struct {
	RecordType string    `json:"record_type"` // "invoice", "receipt", "customer"
	RecordID   uuid.UUID `json:"record_id"`
	Reference  string    `json:"reference,omitempty"` // invoice/voucher number for display
	Code       string    `json:"code"`
	Message    string    `json:"message"`
}

// NewRecordError creates a record error from a domain error
func NewRecordError(recordType string, recordID uuid.UUID, reference string, err error) RecordError {
	re := RecordError{
		RecordType: recordType,
		RecordID:   recordID,
		Reference:  reference,
		Code:       ErrCodeValidation,
		Message:    err.Error(),
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		re.Code = de.Code
	}
	return re
}
