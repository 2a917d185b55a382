package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStore represents errors from the underlying graph store
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeWrite represents write acknowledgement errors
	ErrorTypeWrite ErrorType = "write"
	// ErrorTypeShape represents data observed in an unexpected shape
	ErrorTypeShape ErrorType = "shape"
	// ErrorTypeRelationship represents relationship consistency errors
	ErrorTypeRelationship ErrorType = "relationship"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Base exposes the embedded BaseError from any concrete error type.
func (e *BaseError) Base() *BaseError {
	return e
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Store Errors

// ErrStoreUnavailable is returned when no store handle is configured.
// Operations seeing it short-circuit to safe empty/false results.
var ErrStoreUnavailable = NewBaseError(ErrorTypeStore, "store handle not available", nil)

// Write Errors

// ErrWriteTimeout is returned when a put receives no acknowledgement within
// its deadline. On creation paths this is treated as success; paths that need
// verified state treat it as unconfirmed.
type ErrWriteTimeout struct {
	*BaseError
	Path    string
	Timeout time.Duration
}

func NewWriteTimeout(path string, timeout time.Duration) *ErrWriteTimeout {
	return &ErrWriteTimeout{
		BaseError: NewBaseError(ErrorTypeWrite, fmt.Sprintf("write not acknowledged within %v: %s", timeout, path), nil),
		Path:      path,
		Timeout:   timeout,
	}
}

// ErrWriteRejected is returned when the store explicitly acknowledges a write
// with an error. Terminal once the retry budget is exhausted.
type ErrWriteRejected struct {
	*BaseError
	Path     string
	Attempts int
}

func NewWriteRejected(path string, attempts int, err error) *ErrWriteRejected {
	return &ErrWriteRejected{
		BaseError: NewBaseError(ErrorTypeWrite, fmt.Sprintf("write rejected after %d attempts: %s", attempts, path), err),
		Path:      path,
		Attempts:  attempts,
	}
}

// Shape Errors

// ErrShapeViolation is returned when a stored record does not match the
// expected shape, e.g. a relationship field holding an array instead of a
// flag-map. Surfaced by the auditor, never silently corrected on reads.
type ErrShapeViolation struct {
	*BaseError
	EntityID string
	Field    string
	Reason   string
}

func NewShapeViolation(entityID, field, reason string) *ErrShapeViolation {
	return &ErrShapeViolation{
		BaseError: NewBaseError(ErrorTypeShape, fmt.Sprintf("shape violation on %s.%s: %s", entityID, field, reason), nil),
		EntityID:  entityID,
		Field:     field,
		Reason:    reason,
	}
}

// Relationship Errors

// ErrPartialRelationship is returned when an edge exists on one endpoint but
// not the other. A detectable, repairable state rather than a hard failure.
type ErrPartialRelationship struct {
	*BaseError
	FromID string
	ToID   string
}

func NewPartialRelationship(fromID, toID string) *ErrPartialRelationship {
	return &ErrPartialRelationship{
		BaseError: NewBaseError(ErrorTypeRelationship, fmt.Sprintf("one-sided edge: %s -> %s has no mirror", fromID, toID), nil),
		FromID:    fromID,
		ToID:      toID,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled mid-operation
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if based, ok := err.(interface{ Base() *BaseError }); ok {
		return based.Base().Type == errType
	}
	if wrapper, ok := err.(interface{ Unwrap() error }); ok {
		if inner := wrapper.Unwrap(); inner != nil {
			return IsErrorType(inner, errType)
		}
	}
	return false
}

// IsRetryable checks if an error is worth another attempt
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// Explicit rejections may be transient on the store side
	if _, ok := err.(*ErrWriteRejected); ok {
		return true
	}
	// Timeouts are not retried: on creation paths they already count as
	// success, and retrying a maybe-landed write only adds queue pressure.
	if _, ok := err.(*ErrWriteTimeout); ok {
		return false
	}
	return false
}
