package recurrence

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports an input value rejected at the engine boundary.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// RecordIssue describes a record skipped during batch processing.
type RecordIssue struct {
	Kind     string `json:"kind"`
	RecordID string `json:"record_id"`
	Err      error  `json:"-"`
	Message  string `json:"message"`
}

// NewRecordIssue builds an issue and captures the error text for serialisation.
func NewRecordIssue(kind, recordID string, err error) RecordIssue {
	return RecordIssue{Kind: kind, RecordID: recordID, Err: err, Message: err.Error()}
}

func (i RecordIssue) String() string {
	if i.RecordID == "" {
		return fmt.Sprintf("%s: %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("%s %s: %s", i.Kind, i.RecordID, i.Message)
}
