// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrAssetNotFound     = errors.New("asset not found")
	ErrAssetExists       = errors.New("asset already exists")
	ErrNoData            = errors.New("no data available")
	ErrSourceUnavailable = errors.New("data source unavailable")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrInvalidInput      = errors.New("input validation failed")
	ErrDatabase          = errors.New("database error")
	ErrConfigInvalid     = errors.New("invalid configuration")
)

// SourceError represents a failure talking to the external market data
// provider for one symbol.
type SourceError struct {
	Symbol    string
	Operation string
	Err       error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source error [%s] %s: %v", e.Symbol, e.Operation, e.Err)
	}
	return fmt.Sprintf("source error [%s] %s", e.Symbol, e.Operation)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new SourceError.
func NewSourceError(symbol, operation string, err error) *SourceError {
	return &SourceError{
		Symbol:    symbol,
		Operation: operation,
		Err:       err,
	}
}

// RowError describes a single fetched row rejected during ingestion.
// The rest of the batch proceeds; this is a diagnostic, not a batch failure.
type RowError struct {
	Symbol string
	Date   time.Time
	Field  string
	Value  float64
}

func (e *RowError) Error() string {
	return fmt.Sprintf("malformed row [%s] %s: field %s has non-finite value %v",
		e.Symbol, e.Date.Format("2006-01-02"), e.Field, e.Value)
}

// NewRowError creates a new RowError.
func NewRowError(symbol string, date time.Time, field string, value float64) *RowError {
	return &RowError{
		Symbol: symbol,
		Date:   date,
		Field:  field,
		Value:  value,
	}
}

// ValidationError represents a validation error on user input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
