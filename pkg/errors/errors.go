// Package errors provides custom error types for the keysync system.
// These errors enable programmatic error checking across the pipeline:
// row and peer level failures are counted and audited, while a small set
// of fatal errors abort a reconciliation run.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// As is the standard library errors.As.
var As = errors.As

// Common sentinel errors for the keysync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates a configuration a run cannot start with
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidKey indicates a raw key that cannot be normalized
	ErrInvalidKey = errors.New("invalid key")

	// ErrSystemUnavailable indicates that a source system could not be extracted
	ErrSystemUnavailable = errors.New("system unavailable")

	// ErrRowCorrupted indicates a single unreadable record
	ErrRowCorrupted = errors.New("row corrupted")

	// ErrInvalidTransition indicates an illegal master key status change
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCheckpoint indicates an incompatible or corrupt checkpoint
	ErrCheckpoint = errors.New("checkpoint unusable")

	// ErrPersistence indicates a failed write to the store
	ErrPersistence = errors.New("persistence write failed")

	// ErrCorrupted indicates stored data that fails its checksum
	ErrCorrupted = errors.New("data corrupted")

	// ErrLocked indicates the store is held by another run
	ErrLocked = errors.New("store locked")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Reasons reported by InvalidKeyError.
const (
	KeyMissing = "missing"
	KeyEmpty   = "empty"
	KeyBlank   = "normalizes to empty"
)

// InvalidKeyError represents a raw key the normalizer refuses.
// A missing key and an empty key carry different reasons.
type InvalidKeyError struct {
	Raw    string
	Reason string
}

// Error implements the error interface
func (e *InvalidKeyError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("invalid key %q: %s", e.Raw, e.Reason)
	}
	return fmt.Sprintf("invalid key: %s", e.Reason)
}

// Is implements errors.Is support
func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

// NewInvalidKeyError creates a new InvalidKeyError
func NewInvalidKeyError(raw, reason string) *InvalidKeyError {
	return &InvalidKeyError{Raw: raw, Reason: reason}
}

// SystemUnavailableError represents a source system whose extraction failed entirely.
// It is fatal only for the authoritative system.
type SystemUnavailableError struct {
	System string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *SystemUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("system %s unavailable: %s", e.System, e.Reason)
	}
	return fmt.Sprintf("system %s unavailable", e.System)
}

// Unwrap implements errors.Unwrap
func (e *SystemUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SystemUnavailableError) Is(target error) bool {
	return target == ErrSystemUnavailable
}

// NewSystemUnavailableError creates a new SystemUnavailableError
func NewSystemUnavailableError(system string, err error) *SystemUnavailableError {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &SystemUnavailableError{System: system, Reason: reason, Err: err}
}

// RowCorruptionError represents one unreadable record in a system extract.
type RowCorruptionError struct {
	System  string
	Line    int
	Message string
	Err     error
}

// Error implements the error interface
func (e *RowCorruptionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupt row in system %s at line %d: %s", e.System, e.Line, e.Message)
	}
	return fmt.Sprintf("corrupt row in system %s: %s", e.System, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *RowCorruptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RowCorruptionError) Is(target error) bool {
	return target == ErrRowCorrupted
}

// NewRowCorruptionError creates a new RowCorruptionError
func NewRowCorruptionError(system string, line int, err error) *RowCorruptionError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &RowCorruptionError{System: system, Line: line, Message: message, Err: err}
}

// InvalidStateTransitionError represents an illegal master key status change
type InvalidStateTransitionError struct {
	MasterKey string
	From      string
	To        string
}

// Error implements the error interface
func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("master key %s cannot move from %s to %s", e.MasterKey, e.From, e.To)
}

// Is implements errors.Is support
func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CheckpointResumeError represents a run that cannot be resumed.
// The caller has to start a fresh full run.
type CheckpointResumeError struct {
	RunID   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *CheckpointResumeError) Error() string {
	return fmt.Sprintf("cannot resume run %s: %s", e.RunID, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *CheckpointResumeError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *CheckpointResumeError) Is(target error) bool {
	return target == ErrCheckpoint
}

// NewCheckpointResumeError creates a new CheckpointResumeError
func NewCheckpointResumeError(runID, message string, err error) *CheckpointResumeError {
	return &CheckpointResumeError{RunID: runID, Message: message, Err: err}
}

// PersistenceWriteError represents a failed store transaction.
// Offset is the last committed checkpoint offset.
type PersistenceWriteError struct {
	Operation string
	RunID     string
	Offset    int
	Err       error
}

// Error implements the error interface
func (e *PersistenceWriteError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("persistence write failed during %s (run %s, offset %d): %v", e.Operation, e.RunID, e.Offset, e.Err)
	}
	return fmt.Sprintf("persistence write failed during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceWriteError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PersistenceWriteError) Is(target error) bool {
	return target == ErrPersistence
}

// LockedError represents a store already held by another run
type LockedError struct {
	Store string
	Owner string
}

// Error implements the error interface
func (e *LockedError) Error() string {
	return fmt.Sprintf("store %s is locked by run %s", e.Store, e.Owner)
}

// Is implements errors.Is support
func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// ConfigError represents a configuration error
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
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "csv", "json", "yaml"
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
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "open", "close"
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

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "open", "load", "save", "list"
	Resource  string // "store", "run", "registry", "snapshot"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// TimeoutError represents an operation timeout
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	if e.Duration != "" {
		return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
	}
	return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
		Message:   message,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInvalidKey checks if an error is a normalization input error
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// IsSystemUnavailable checks if an error marks a system as unavailable
func IsSystemUnavailable(err error) bool {
	return errors.Is(err, ErrSystemUnavailable)
}

// IsRowCorrupted checks if an error is a row level failure
func IsRowCorrupted(err error) bool {
	return errors.Is(err, ErrRowCorrupted)
}

// IsInvalidTransition checks if an error is an illegal status change
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsCheckpointError checks if an error prevents a resume
func IsCheckpointError(err error) bool {
	return errors.Is(err, ErrCheckpoint)
}

// IsPersistenceError checks if an error is a failed store write
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsCorrupted checks if an error reports damaged stored data
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrCorrupted)
}

// IsLocked checks if an error is a store lock conflict
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapPersistence wraps an error as a PersistenceWriteError
func WrapPersistence(operation, runID string, offset int, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceWriteError{Operation: operation, RunID: runID, Offset: offset, Err: err}
}
