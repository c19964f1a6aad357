// Package errors provides custom error types for the service desk.
//
// Each type names one failure class of the complaint workflow so callers
// (HTTP handlers, the Telegram bot, the periodic reporter) can pick a
// recovery strategy without string matching:
//   - ValidationError: a precondition gate refused the command, nothing changed
//   - NotFoundError: the referenced complaint does not exist
//   - PersistenceError: the mutation stands in memory but the slot write failed
//   - ParseError: the text-parsing collaborator produced nothing usable
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrInvalidValue is wrapped when a caller supplies an unknown enum value
// (status, product type, case type, part status).
var ErrInvalidValue = stderrors.New("invalid value")

// ValidationError indicates that a command was rejected before any state changed.
//
// This error is returned when:
//   - Closing without work done or technician name
//   - Closing a Warranty case without warranty card and invoice slip
//   - Closing with a negative amount
//   - Submitting an intake form with required fields missing
//
// Recovery strategy: Fix the input and retry the same command
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("validation failed: %s (%s)", e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a new validation error listing the offending fields
func NewValidationError(msg string, fields ...string) *ValidationError {
	return &ValidationError{Message: msg, Fields: fields}
}

// NotFoundError indicates that no complaint carries the requested id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("complaint not found: %s", e.ID)
}

// NewNotFoundError creates a new not found error for the given complaint id
func NewNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

// PersistenceError wraps a failed write-through to the persistence slot.
//
// The in-memory mutation that triggered the write has already been applied
// and remains the source of truth for the running process.
//
// Recovery strategy: Log, surface as a warning, let the next mutation rewrite the slot
type PersistenceError struct {
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persistence error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("persistence error: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new persistence error with context
func NewPersistenceError(msg string, err error) *PersistenceError {
	return &PersistenceError{Message: msg, Err: err}
}

// ParseError wraps failures of the external text-parsing collaborator.
//
// This error is returned when:
//   - The HTTP call fails or returns a non-200 status
//   - The model returns no candidates
//   - The returned text is not the expected JSON object
//
// Recovery strategy: Treat as "no fields extracted" and keep the form as it was
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new parse error with context
func NewParseError(msg string, err error) *ParseError {
	return &ParseError{Message: msg, Err: err}
}

// IsValidation checks if the error chain contains a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

// IsNotFound checks if the error chain contains a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return stderrors.As(err, &target)
}

// IsPersistence checks if the error chain contains a PersistenceError
func IsPersistence(err error) bool {
	var target *PersistenceError
	return stderrors.As(err, &target)
}

// IsParse checks if the error chain contains a ParseError
func IsParse(err error) bool {
	var target *ParseError
	return stderrors.As(err, &target)
}

// IsInvalidValue checks if the error chain contains ErrInvalidValue
func IsInvalidValue(err error) bool {
	return stderrors.Is(err, ErrInvalidValue)
}
