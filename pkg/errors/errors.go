package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the category of an application error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInvalidState ErrorType = "INVALID_STATE"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeDatabase    ErrorType = "DATABASE"
)

// Validation codes attached to ValidationError values raised by node mutations.
const (
	CodeCircularReference  = "CIRCULAR_REFERENCE"
	CodeDuplicateReference = "DUPLICATE_REFERENCE"
	CodeMissingReference   = "MISSING_REFERENCE"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails merges error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return sb.String()
}

func newAppError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error for the named resource
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewInvalidStateError reports an operation that the current state of a resource forbids,
// such as mutating a tombstoned node.
func NewInvalidStateError(message string) *AppError {
	return newAppError(ErrorTypeInvalidState, http.StatusConflict, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, fmt.Sprintf("service '%s' is unavailable", service))
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// NewCircularReferenceError rejects ids that would be both a generalization and a
// specialization of the same node.
func NewCircularReferenceError(ids []string) *AppError {
	msg := fmt.Sprintf("Circular reference detected: Node(s) %s cannot be both a generalization and specialization of the same node",
		strings.Join(ids, ", "))
	return NewValidationError(msg).
		WithCode(CodeCircularReference).
		WithDetails(map[string]interface{}{"nodeIds": ids})
}

// NewDuplicateReferenceError rejects repeated ids inside a named collection.
// duplicates is keyed by relationship set, then by collection name.
func NewDuplicateReferenceError(duplicates map[string]map[string][]string) *AppError {
	sets := make([]string, 0, len(duplicates))
	for set := range duplicates {
		sets = append(sets, set)
	}
	sort.Strings(sets)

	parts := make([]string, 0)
	details := make(map[string]interface{}, len(duplicates))
	for _, set := range sets {
		byCollection := duplicates[set]
		if len(byCollection) == 0 {
			continue
		}
		names := make([]string, 0, len(byCollection))
		for name := range byCollection {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s[%s]: %s", set, name, strings.Join(byCollection[name], ", ")))
		}
		details[set] = byCollection
	}
	return NewValidationError("Duplicate node references found: " + strings.Join(parts, "; ")).
		WithCode(CodeDuplicateReference).
		WithDetails(details)
}

// NewMissingReferenceError reports referenced nodes that do not exist.
func NewMissingReferenceError(kind string, ids []string) *AppError {
	return NewValidationError(fmt.Sprintf("The following %s nodes do not exist: %s", kind, strings.Join(ids, ", "))).
		WithCode(CodeMissingReference).
		WithDetails(map[string]interface{}{"kind": kind, "nodeIds": ids})
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsNotFound(err error) bool     { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool   { return IsType(err, ErrorTypeValidation) }
func IsConflict(err error) bool     { return IsType(err, ErrorTypeConflict) }
func IsInvalidState(err error) bool { return IsType(err, ErrorTypeInvalidState) }
func IsUnauthorized(err error) bool { return IsType(err, ErrorTypeUnauthorized) }

// HasCode checks the code of an AppError in the chain
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return err
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
