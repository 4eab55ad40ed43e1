package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Custom errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateKey       = errors.New("duplicate key violation")
	ErrAlreadySettled     = errors.New("race already settled")
	ErrRaceClosed         = errors.New("race is not accepting wagers")
	ErrStaleTransition    = errors.New("race status changed concurrently")
	ErrRaceAlreadyRunning = errors.New("another race is already running")
	ErrInsufficientCredit = errors.New("insufficient credits")
)

// ValidationError is returned for malformed input. It is never retried.
type ValidationError struct {
	Code    string
	Message string
}

// NewValidationError creates a validation error with a machine readable code
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (code: %s)", e.Message, e.Code)
}

// StateError is returned when an operation targets a race in the wrong lifecycle state.
type StateError struct {
	RaceID    uuid.UUID
	Status    RaceStatus
	Operation string
	Cause     error
}

// NewStateError creates a state error for the given race and attempted operation
func NewStateError(raceID uuid.UUID, status RaceStatus, operation string) *StateError {
	return &StateError{RaceID: raceID, Status: status, Operation: operation}
}

func (e *StateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("state error: cannot %s race %s in status %q: %v", e.Operation, e.RaceID, e.Status, e.Cause)
	}
	return fmt.Sprintf("state error: cannot %s race %s in status %q", e.Operation, e.RaceID, e.Status)
}

func (e *StateError) Unwrap() error {
	return e.Cause
}

// PersistenceError wraps a store failure. The operation left state unchanged and may be retried.
type PersistenceError struct {
	Op    string
	Cause error
}

// NewPersistenceError wraps cause as a persistence failure of op
func NewPersistenceError(op string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Cause: cause}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsState reports whether err is a StateError
func IsState(err error) bool {
	var target *StateError
	return errors.As(err, &target)
}

// IsPersistence reports whether err is a PersistenceError
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
