// Package errors provides custom error types for the crosscheck system.
// These errors enable programmatic error checking at the rule boundary,
// where every failure must degrade to an ERROR-status result rather than
// abort the run.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the crosscheck system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownCheck indicates a rule references a check kind outside the catalogue
	ErrUnknownCheck = errors.New("unknown check kind")

	// ErrCoercion indicates a value could not be coerced to the required type
	ErrCoercion = errors.New("type coercion failed")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")
)

// ConfigError represents a malformed rule or run configuration.
// Detected before evaluation; aborts that rule only.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ColumnError indicates a rule references a column absent from a dataset.
// It carries the available columns so the report can name them.
type ColumnError struct {
	Column    string
	Dataset   string
	Available []string
}

// Error implements the error interface
func (e *ColumnError) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("column %q not found in dataset %q (available: %s)",
			e.Column, e.Dataset, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("column %q not found in dataset %q", e.Column, e.Dataset)
}

// Is implements errors.Is support
func (e *ColumnError) Is(target error) bool {
	return target == ErrNotFound
}

// NewColumnError creates a new ColumnError
func NewColumnError(column, dataset string, available []string) *ColumnError {
	return &ColumnError{Column: column, Dataset: dataset, Available: available}
}

// CoercionError indicates a cell value could not be coerced to the type a
// check requires. Reported per record as a data-quality finding, not a
// hard error.
type CoercionError struct {
	Value  string
	Target string // "number", "integer", "date"
	Err    error
}

// Error implements the error interface
func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %q to %s", e.Value, e.Target)
}

// Unwrap implements errors.Unwrap
func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *CoercionError) Is(target error) bool {
	return target == ErrCoercion
}

// NewCoercionError creates a new CoercionError
func NewCoercionError(value, target string, err error) *CoercionError {
	return &CoercionError{Value: value, Target: target, Err: err}
}

// RuleError wraps any unexpected failure during a single rule's
// evaluation. It is caught at the rule boundary and surfaced as an
// ERROR-status result; it never propagates to abort the batch.
type RuleError struct {
	RuleID string
	Stage  string // "reconciliation", "validation"
	Err    error
}

// Error implements the error interface
func (e *RuleError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s rule %s failed: %v", e.Stage, e.RuleID, e.Err)
	}
	return fmt.Sprintf("rule %s failed: %v", e.RuleID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RuleError) Unwrap() error {
	return e.Err
}

// NewRuleError creates a new RuleError
func NewRuleError(ruleID, stage string, err error) *RuleError {
	return &RuleError{RuleID: ruleID, Stage: stage, Err: err}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "yaml", "csv", "regex", "date"
	File    string
	Line    int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d: %s", e.Format, e.File, e.Line, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfig checks if an error is a configuration error
func IsConfig(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsCoercion checks if an error is a type coercion failure
func IsCoercion(err error) bool {
	return errors.Is(err, ErrCoercion)
}

// IsUnknownCheck checks if an error reports an unknown check kind
func IsUnknownCheck(err error) bool {
	return errors.Is(err, ErrUnknownCheck)
}

// Helper wrapping functions for common patterns

// WrapRule wraps an error as a RuleError
func WrapRule(ruleID, stage string, err error) error {
	if err == nil {
		return nil
	}
	return NewRuleError(ruleID, stage, err)
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
