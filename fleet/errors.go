/*
errors.go - Centralized error types for the fleet engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch with errors.Is / errors.As; the HTTP layer maps them
  to status codes.

ERROR CATEGORIES:
  1. Not-found errors - referenced record does not exist
  2. Validation errors - illegal transition or malformed input
  3. Store errors - persistence failures, CAS conflicts

SEE ALSO:
  - penalization.go, leave.go: Produce these errors
  - api/handlers.go: Maps them to HTTP responses
*/
package fleet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeNotFound is returned when the referenced employee does
	// not exist in the record store.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrLeaveNotFound is returned when a referenced leave request is missing.
	ErrLeaveNotFound = errors.New("leave request not found")

	// ErrNotificationNotFound is returned when a referenced notification is missing.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrInvalidRange is returned for a malformed penalization window
	// (start after end, unparseable dates). Rejected before any write.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidState is returned when the requested transition is not
	// legal from the current state.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrConcurrentModification is returned when the updated-at
	// compare-and-swap detects that the record moved underneath us.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPersistence wraps record store read/write failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrDuplicateEmployee is returned when inserting an ID that exists.
	ErrDuplicateEmployee = errors.New("employee already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidRangeError reports a window where start is after end.
type InvalidRangeError struct {
	Start Date
	End   Date
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid penalization window: start %s after end %s", e.Start, e.End)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// InvalidStateError reports an illegal transition attempt.
type InvalidStateError struct {
	EmployeeID string
	Current    Status
	Requested  string // the operation or target state
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("employee %s: cannot %s from status %q", e.EmployeeID, e.Requested, e.Current)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrLeaveNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrDuplicateEmployee)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
