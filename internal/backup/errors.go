package backup

import (
	"errors"
	"fmt"
)

// CycleError represents errors that occur during a backup cycle
type CycleError struct {
	Type    CycleErrorType         `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *CycleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *CycleError) Unwrap() error {
	return e.Cause
}

// CycleErrorType represents different types of backup cycle errors
type CycleErrorType string

const (
	// CycleErrorTypeConfig covers invalid or contradictory configuration.
	CycleErrorTypeConfig CycleErrorType = "CONFIG_ERROR"
	// CycleErrorTypeIO covers filesystem failures: unreadable roots,
	// failed deletes, lock files that cannot be created.
	CycleErrorTypeIO CycleErrorType = "IO_ERROR"
	// CycleErrorTypeAuthRejected means the database refused the configured
	// credentials. Never retried within a cycle.
	CycleErrorTypeAuthRejected CycleErrorType = "AUTH_REJECTED"
	// CycleErrorTypeTimeout means the backup tool exceeded its deadline
	// and was killed.
	CycleErrorTypeTimeout CycleErrorType = "TIMEOUT"
	// CycleErrorTypeToolExecution covers non-zero exits and missing
	// completion markers from the backup tool.
	CycleErrorTypeToolExecution CycleErrorType = "TOOL_EXECUTION_ERROR"
	// CycleErrorTypeArchive covers seal, verify, encrypt and rotation
	// failures.
	CycleErrorTypeArchive CycleErrorType = "ARCHIVE_ERROR"
)

// NewCycleError creates a new CycleError
func NewCycleError(errorType CycleErrorType, message string, cause error) *CycleError {
	return &CycleError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *CycleError) WithContext(key string, value interface{}) *CycleError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors

func NewConfigError(message string, cause error) *CycleError {
	return NewCycleError(CycleErrorTypeConfig, message, cause)
}

func NewIOError(message string, cause error) *CycleError {
	return NewCycleError(CycleErrorTypeIO, message, cause)
}

func NewAuthRejectedError(message string, cause error) *CycleError {
	return NewCycleError(CycleErrorTypeAuthRejected, message, cause)
}

func NewTimeoutError(message string, cause error) *CycleError {
	return NewCycleError(CycleErrorTypeTimeout, message, cause)
}

func NewToolExecutionError(message string, cause error) *CycleError {
	return NewCycleError(CycleErrorTypeToolExecution, message, cause)
}

func NewArchiveError(message string, cause error) *CycleError {
	return NewCycleError(CycleErrorTypeArchive, message, cause)
}

// NewLockError reports a failure to acquire or release the cycle lock.
// Lock failures are filesystem problems, so they carry the IO type.
func NewLockError(message string, cause error) *CycleError {
	return NewIOError(message, cause).WithContext("subsystem", "lock")
}

// NewEncryptionError reports an archive encryption failure. Encryption runs
// inside the seal path, so these carry the archive type.
func NewEncryptionError(message string, cause error) *CycleError {
	return NewArchiveError(message, cause).WithContext("subsystem", "encryption")
}

// ValidationError represents validation-specific errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		return cycleErr.Type == CycleErrorTypeIO
	}
	return false
}

// IsPermanent determines if an error is permanent and should not be retried
func IsPermanent(err error) bool {
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		switch cycleErr.Type {
		case CycleErrorTypeConfig, CycleErrorTypeAuthRejected:
			return true
		default:
			return false
		}
	}
	return false
}

// IsAuthRejected reports whether the error chain contains a credential
// rejection from the database
func IsAuthRejected(err error) bool {
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		return cycleErr.Type == CycleErrorTypeAuthRejected
	}
	return false
}

// IsTimeout reports whether the error chain contains a tool timeout
func IsTimeout(err error) bool {
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		return cycleErr.Type == CycleErrorTypeTimeout
	}
	return false
}
