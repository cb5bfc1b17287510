package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrDiscountNotFound    = errors.New("discount not found")
	ErrInsufficientPayment = errors.New("insufficient payment amount")
	ErrDuplicateFeedback   = errors.New("feedback already exists for this transaction")
	ErrInvalidQuantity     = errors.New("quantity must be a positive integer")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrFeedbackNotFound    = errors.New("feedback not found")
	ErrFarewellNotFound    = errors.New("farewell message not found")
	ErrPersistence         = errors.New("persistence failure")
	ErrUnauthenticated     = errors.New("invalid credentials")
)

// ValidationError reports malformed input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
