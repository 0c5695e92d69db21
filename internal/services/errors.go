package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrderNotFound covers both "does not exist" and "not visible to the
	// caller"; the two are never distinguished in responses.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentDeclined reports a gateway decline. The order stays payable;
	// callers may retry or switch payment method.
	ErrPaymentDeclined = errors.New("payment declined")
)

// ValidationError reports malformed or missing input the caller must correct.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
	}
	return e.Reason
}

func newValidationError(reason string, fields ...string) *ValidationError {
	return &ValidationError{Reason: reason, Fields: fields}
}

// ConflictError reports a valid request that the order's current state
// forbids, like cancelling a shipped order or paying twice.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func newConflictError(reason string) *ConflictError {
	return &ConflictError{Reason: reason}
}

// IsValidationError reports whether err is user-correctable input.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflictError reports whether err is a business-rule conflict.
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
