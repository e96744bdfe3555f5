package backup

import (
	"errors"
	"fmt"
)

// SyncError represents errors that occur during export/import operations
type SyncError struct {
	Type    SyncErrorType          `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// SyncErrorType represents different categories of export/import errors
type SyncErrorType string

const (
	SyncErrorTypeStorage       SyncErrorType = "STORAGE_ERROR"
	SyncErrorTypeValidation    SyncErrorType = "VALIDATION_ERROR"
	SyncErrorTypeSerialization SyncErrorType = "SERIALIZATION_ERROR"
	SyncErrorTypeRegistry      SyncErrorType = "REGISTRY_ERROR"
	SyncErrorTypeCompression   SyncErrorType = "COMPRESSION_ERROR"
	SyncErrorTypeEncryption    SyncErrorType = "ENCRYPTION_ERROR"
	SyncErrorTypeCorruption    SyncErrorType = "CORRUPTION_ERROR"
	SyncErrorTypeConfiguration SyncErrorType = "CONFIGURATION_ERROR"
	SyncErrorTypeNotFound      SyncErrorType = "NOT_FOUND_ERROR"
	SyncErrorTypeDatabase      SyncErrorType = "DATABASE_ERROR"
)

// NewSyncError creates a new SyncError
func NewSyncError(errorType SyncErrorType, message string, cause error) *SyncError {
	return &SyncError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors

func NewStorageError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeStorage, message, cause)
}

func NewValidationError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeValidation, message, cause)
}

func NewSerializationError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeSerialization, message, cause)
}

func NewRegistryError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeRegistry, message, cause)
}

func NewCompressionError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeCompression, message, cause)
}

func NewEncryptionError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeEncryption, message, cause)
}

func NewCorruptionError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeCorruption, message, cause)
}

func NewConfigurationError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeConfiguration, message, cause)
}

func NewNotFoundError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeNotFound, message, cause)
}

func NewDatabaseError(message string, cause error) *SyncError {
	return NewSyncError(SyncErrorTypeDatabase, message, cause)
}

// IsErrorType reports whether err is (or wraps) a SyncError of the given type.
func IsErrorType(err error, errorType SyncErrorType) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Type == errorType
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND_ERROR.
func IsNotFound(err error) bool {
	return IsErrorType(err, SyncErrorTypeNotFound)
}

// CycleError is raised by Registry.GetOrdered when the dependency graph
// contains a cycle. It names the model re-encountered while still on the
// DFS stack; this is a registration bug, not a data problem.
type CycleError struct {
	Model string
}

// Error implements the error interface
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected at model %q", e.Model)
}

// ValidationError represents a single field-level validation failure
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
