package backup

import (
	"errors"
	"fmt"
)

// BackupError represents errors that occur during backup, restore, and
// migration operations
type BackupError struct {
	Type      BackupErrorType        `json:"type"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *BackupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// BackupErrorType represents different types of backup errors
type BackupErrorType string

const (
	BackupErrorTypeConnectivity  BackupErrorType = "CONNECTIVITY_ERROR"
	BackupErrorTypeCorruption    BackupErrorType = "CORRUPTION_ERROR"
	BackupErrorTypePartial       BackupErrorType = "PARTIAL_FAILURE"
	BackupErrorTypeIdempotency   BackupErrorType = "IDEMPOTENCY_VIOLATION"
	BackupErrorTypeConfiguration BackupErrorType = "CONFIGURATION_ERROR"
	BackupErrorTypeStorage       BackupErrorType = "STORAGE_ERROR"
	BackupErrorTypeValidation    BackupErrorType = "VALIDATION_ERROR"
	BackupErrorTypeCompression   BackupErrorType = "COMPRESSION_ERROR"
	BackupErrorTypeEncryption    BackupErrorType = "ENCRYPTION_ERROR"
	BackupErrorTypeNotFound      BackupErrorType = "NOT_FOUND_ERROR"
	BackupErrorTypeConflict      BackupErrorType = "CONFLICT_ERROR"
)

// NewBackupError creates a new BackupError
func NewBackupError(errorType BackupErrorType, message string, cause error) *BackupError {
	return &BackupError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithComponent records which component the error originated from
func (e *BackupError) WithComponent(component string) *BackupError {
	e.Component = component
	return e
}

// Common error constructors

// NewConnectivityError wraps a backend connectivity failure. Connectivity
// errors are recoverable: the affected component is skipped and reported
// rather than aborting the whole run.
func NewConnectivityError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeConnectivity, message, cause)
}

// NewCorruptionError marks a checksum mismatch on backup data. Corruption
// errors are fatal and abort restore before any write reaches a backend.
func NewCorruptionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCorruption, message, cause)
}

// NewPartialFailureError reports that some components succeeded while others
// failed in a single run.
func NewPartialFailureError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypePartial, message, cause)
}

// NewIdempotencyViolationError marks a transformation that produced different
// results across identical runs. This indicates a design defect and is never
// retried.
func NewIdempotencyViolationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeIdempotency, message, cause)
}

func NewConfigurationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeConfiguration, message, cause)
}

func NewStorageError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeStorage, message, cause)
}

func NewValidationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeValidation, message, cause)
}

func NewCompressionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCompression, message, cause)
}

func NewEncryptionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeEncryption, message, cause)
}

func NewNotFoundError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeNotFound, message, cause)
}

func NewConflictError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeConflict, message, cause)
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
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		switch backupErr.Type {
		case BackupErrorTypeConnectivity, BackupErrorTypeStorage:
			return true
		default:
			return false
		}
	}
	return false
}

// IsFatal determines if an error must abort the operation rather than be
// reported and skipped
func IsFatal(err error) bool {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		switch backupErr.Type {
		case BackupErrorTypeCorruption, BackupErrorTypeIdempotency,
			BackupErrorTypeConfiguration:
			return true
		default:
			return false
		}
	}
	return false
}

// IsErrorType reports whether err carries the given backup error type
// anywhere in its chain
func IsErrorType(err error, errorType BackupErrorType) bool {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Type == errorType
	}
	return false
}
