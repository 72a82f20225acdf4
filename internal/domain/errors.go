package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur while loading and running documents.
var (
	// ErrMalformedDocument indicates that a document lacks the structural
	// fields the decoder needs.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrSyntax indicates that a fragment could not be parsed or resolved.
	ErrSyntax = errors.New("syntax error")

	// ErrExecution indicates that a unit raised while running.
	ErrExecution = errors.New("execution failure")

	// ErrUnknownParameter indicates that an override names no declared parameter.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrNonLiteralDefault indicates that a parameter declaration's value is
	// not a literal.
	ErrNonLiteralDefault = errors.New("parameter default is not a literal")

	// ErrRegistration indicates that the resolver registry has no hook point
	// to install a loader into.
	ErrRegistration = errors.New("registration failed")

	// ErrPending indicates that a module has not completed a run.
	ErrPending = errors.New("module has not completed")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// DocumentError reports a document whose structure could not be decoded.
type DocumentError struct {
	// Path is the document path, when known.
	Path string
	// Reason describes what was missing or unreadable.
	Reason string
}

// Error implements the error interface for DocumentError.
func (e *DocumentError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed document: %s", e.Reason)
	}
	return fmt.Sprintf("malformed document %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrMalformedDocument.
func (e *DocumentError) Unwrap() error { return ErrMalformedDocument }

// NewDocumentError creates a new DocumentError.
func NewDocumentError(path, reason string) *DocumentError {
	return &DocumentError{Path: path, Reason: reason}
}

// SyntaxError reports a fragment that could not be compiled. Line is the
// line of the original document, never a fragment-local line.
type SyntaxError struct {
	Path string
	Line int
	Col  int
	Msg  string
}

// Error implements the error interface for SyntaxError.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
}

// Unwrap returns ErrSyntax.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// NewSyntaxError creates a new SyntaxError.
func NewSyntaxError(path string, line, col int, msg string) *SyntaxError {
	return &SyntaxError{Path: path, Line: line, Col: col, Msg: msg}
}

// ExecutionError captures a failure raised while a unit ran. It is stored in
// a module's Status rather than returned to the caller.
type ExecutionError struct {
	// Path is the document that was running.
	Path string
	// Line is the document line of the innermost frame inside the document,
	// or 0 when the failure has no position.
	Line int
	// Col is the column of that frame.
	Col int
	// Msg is the runtime's description of the failure.
	Msg string
	// Backtrace is the runtime's formatted call stack.
	Backtrace string
	// Err is the underlying runtime error.
	Err error
}

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Unwrap returns the underlying runtime error and ErrExecution.
func (e *ExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExecution}
	}
	return []error{e.Err, ErrExecution}
}

// UnknownParameterError reports an override for a name that the document
// never declared as a parameter.
type UnknownParameterError struct {
	// Name is the rejected override.
	Name string
	// Suggestion is the closest declared name, or empty.
	Suggestion string
	// Known lists the declared parameter names.
	Known []string
}

// Error implements the error interface for UnknownParameterError.
func (e *UnknownParameterError) Error() string {
	msg := fmt.Sprintf("unknown parameter %q", e.Name)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	if len(e.Known) == 0 {
		return msg + "; the document declares no parameters"
	}
	return msg + "; declared: " + strings.Join(e.Known, ", ")
}

// Unwrap returns ErrUnknownParameter.
func (e *UnknownParameterError) Unwrap() error { return ErrUnknownParameter }

// ParameterError reports a parameter declaration that cannot be lifted into
// a default value.
type ParameterError struct {
	Name   string
	Line   int
	Reason string
}

// Error implements the error interface for ParameterError.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %s at line %d: %s", e.Name, e.Line, e.Reason)
}

// Unwrap returns ErrNonLiteralDefault.
func (e *ParameterError) Unwrap() error { return ErrNonLiteralDefault }

// RegistrationError reports a failure to install or remove a loader.
type RegistrationError struct {
	// Operation is "register" or "unregister".
	Operation string
	// Reason describes the missing hook point.
	Reason string
}

// Error implements the error interface for RegistrationError.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// Unwrap returns ErrRegistration.
func (e *RegistrationError) Unwrap() error { return ErrRegistration }

// NewRegistrationError creates a new RegistrationError.
func NewRegistrationError(operation, reason string) *RegistrationError {
	return &RegistrationError{Operation: operation, Reason: reason}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
