package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStore represents database/store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeExtraction represents extraction-model errors
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeEmbedding represents embedding-service errors
	ErrorTypeEmbedding ErrorType = "embedding"
	// ErrorTypeValidation represents validation rejections
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypePipeline represents orchestration errors
	ErrorTypePipeline ErrorType = "pipeline"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
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

// TypeOf exposes the error category. Promoted into every typed wrapper, so
// IsErrorType works on wrappers and wrapped chains alike.
func (e *BaseError) TypeOf() ErrorType {
	return e.Type
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

// ErrEntryNotFound is returned when a raw entry cannot be found
type ErrEntryNotFound struct {
	*BaseError
	EntryID string
}

func NewEntryNotFound(entryID string) *ErrEntryNotFound {
	return &ErrEntryNotFound{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("entry not found: %s", entryID), nil),
		EntryID:   entryID,
	}
}

// ErrStoreWriteFailed is returned when a critical store write fails
type ErrStoreWriteFailed struct {
	*BaseError
	Table string
}

func NewStoreWriteFailed(table string, err error) *ErrStoreWriteFailed {
	return &ErrStoreWriteFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("write to %s failed", table), err),
		Table:     table,
	}
}

// ErrGraphConnectionFailed is returned when the Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// Extraction Errors

// ErrExtractionParseFailed is returned when the model response cannot be
// parsed as the expected JSON object, after the structural retry.
type ErrExtractionParseFailed struct {
	*BaseError
	Attempts int
	Raw      string
}

func NewExtractionParseFailed(attempts int, raw string, err error) *ErrExtractionParseFailed {
	return &ErrExtractionParseFailed{
		BaseError: NewBaseError(ErrorTypeExtraction, fmt.Sprintf("response was not valid JSON after %d attempts", attempts), err),
		Attempts:  attempts,
		Raw:       raw,
	}
}

// ErrExtractionTransport is returned when the model call itself fails
type ErrExtractionTransport struct {
	*BaseError
	Model string
}

func NewExtractionTransport(model string, err error) *ErrExtractionTransport {
	return &ErrExtractionTransport{
		BaseError: NewBaseError(ErrorTypeExtraction, fmt.Sprintf("extraction request failed: %s", model), err),
		Model:     model,
	}
}

// ErrExtractionEmpty is returned when the model returns no choices
var ErrExtractionEmpty = NewBaseError(ErrorTypeExtraction, "no choices in extraction response", nil)

// Pipeline Errors

// ErrEmptyEntry is returned when the raw text is empty after trimming
var ErrEmptyEntry = NewBaseError(ErrorTypePipeline, "entry text is empty", nil)

// Context Errors

// ErrContextTimeout is returned when an operation times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
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

// Helper functions

// IsErrorType checks if an error is of a specific category, looking through
// wrapped errors
func IsErrorType(err error, errType ErrorType) bool {
	var typed interface{ TypeOf() ErrorType }
	if errors.As(err, &typed) {
		return typed.TypeOf() == errType
	}
	return false
}

// IsFatal reports whether an error must abort the pipeline run.
// Only critical store writes and extraction failures are fatal; everything
// else is recorded and swallowed at its call site.
func IsFatal(err error) bool {
	if IsErrorType(err, ErrorTypeExtraction) {
		return true
	}
	if _, ok := err.(*ErrStoreWriteFailed); ok {
		return true
	}
	if IsErrorType(err, ErrorTypeContext) {
		return true
	}
	return false
}
