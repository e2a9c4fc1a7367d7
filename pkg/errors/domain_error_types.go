package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	DomainConflictError       DomainErrorType = "CONFLICT"
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"
	DomainTimeoutError        DomainErrorType = "TIMEOUT_ERROR"
)

// DomainError represents an infrastructure-facing failure that callers may retry
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithCause returns a copy of e wrapping cause. Sentinel values are never mutated.
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := e.clone()
	cp.Cause = cause
	return cp
}

// WithDetail returns a copy of e carrying an extra detail
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	cp := e.clone()
	cp.Details[key] = value
	return cp
}

// WithRetryable returns a copy of e with the retryable flag set
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	cp := e.clone()
	cp.Retryable = retryable
	return cp
}

func (e *DomainError) clone() *DomainError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	return &cp
}

// Is matches domain errors by type and code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainConflictError:
		return http.StatusConflict
	case DomainTimeoutError:
		return http.StatusGatewayTimeout
	case DomainInfrastructureError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	// ErrConcurrentModification signals a commit-time version mismatch. Stores retry it.
	ErrConcurrentModification = NewDomainError(
		DomainConflictError,
		"CONCURRENT_MODIFICATION",
		"The document was modified by another transaction",
	).WithRetryable(true)

	// ErrTransactionFailed is returned once a transaction exhausted its retry budget.
	ErrTransactionFailed = NewDomainError(
		DomainInfrastructureError,
		"TRANSACTION_FAILED",
		"Store transaction failed",
	).WithRetryable(true)

	// ErrReadAfterWrite is raised when a transaction body reads after it has written.
	ErrReadAfterWrite = NewDomainError(
		DomainInfrastructureError,
		"READ_AFTER_WRITE",
		"Transactions require all reads to be executed before all writes",
	)
)

// GetDomainError extracts a DomainError from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsTransactionFailure reports whether err is a store transaction failure
func IsTransactionFailure(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}

// IsConcurrentModification reports whether err is a retryable commit conflict
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsRetryable reports whether err carries the retryable flag
func IsRetryable(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Retryable
}
