// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

// Categories cover the engine's error taxonomy plus ambient infrastructure
// failures. The API layer maps these onto HTTP status codes.
const (
	CategoryValidation             ErrorCategory = "validation"
	CategoryInvalidTransition      ErrorCategory = "invalid-transition"
	CategoryInvestigationArchived  ErrorCategory = "investigation-archived"
	CategoryPermissionDenied       ErrorCategory = "permission-denied"
	CategoryConcurrentModification ErrorCategory = "concurrent-modification"
	CategoryAlreadyMember          ErrorCategory = "already-member"
	CategoryNotAMember             ErrorCategory = "not-a-member"
	CategoryIntegrityMismatch      ErrorCategory = "integrity-mismatch"
	CategoryNotFound               ErrorCategory = "not-found"
	CategoryStoreUnavailable       ErrorCategory = "store-unavailable"
	CategoryDatabase               ErrorCategory = "database"
	CategoryConfiguration          ErrorCategory = "configuration"
	CategoryFileIO                 ErrorCategory = "file-io"
	CategoryNetwork                ErrorCategory = "network"
	CategoryTimeout                ErrorCategory = "timeout"
	CategoryState                  ErrorCategory = "state"
	CategoryGeneric                ErrorCategory = "generic"
)

// ComponentUnknown is used when the component has not been set by the builder.
const ComponentUnknown = "unknown"

// captureHook is invoked on Build when telemetry is enabled. Set via
// SetCaptureHook from the telemetry package to avoid a circular import.
var captureHook func(*EnhancedError)

// SetCaptureHook registers a telemetry capture function. Passing nil disables
// capture. Not safe for concurrent use; call once during startup.
func SetCaptureHook(hook func(*EnhancedError)) {
	captureHook = hook
}

// EnhancedError wraps an error with category, component and context metadata
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches two enhanced errors by category, falling back to standard
// unwrapping for everything else.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new error builder from a format string
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the EnhancedError and triggers optional telemetry reporting
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}
	if captureHook != nil {
		captureHook(ee)
	}
	return ee
}

// CategoryOf returns the category of err if it is an EnhancedError anywhere
// in its chain, CategoryGeneric otherwise.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category
	}
	return CategoryGeneric
}

// HasCategory reports whether err carries the given category.
func HasCategory(err error, category ErrorCategory) bool {
	return CategoryOf(err) == category
}

// Standard library passthroughs so callers don't need a second errors import.

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// NewStd creates a plain error without enhancement, for sentinel values
func NewStd(text string) error {
	return stderrors.New(text)
}
