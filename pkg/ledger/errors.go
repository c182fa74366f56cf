package ledger

import (
	"errors"
	"fmt"
)

// Revert messages fixed by the registry contract. Verifiers and tests
// match on these strings, so they never change.
const (
	RevertSpecHashZero     = "Spec hash cannot be zero"
	RevertTaskNotFound     = "Task does not exist"
	RevertReceiptExists    = "Receipt already submitted"
	RevertArtifactHashZero = "Artifact hash cannot be zero"
	RevertResultHashZero   = "Result hash cannot be zero"
)

// Sentinel errors classifying registry reverts.
var (
	// ErrValidation indicates the submission was malformed (zero hash).
	ErrValidation = errors.New("ledger validation failed")

	// ErrNotFound indicates the referenced task does not exist.
	ErrNotFound = errors.New("ledger record not found")

	// ErrConflict indicates the state transition was already taken,
	// such as a second receipt for the same task.
	ErrConflict = errors.New("ledger state conflict")
)

// RevertError is a registry rejection with the contract's revert
// message attached. Any registry error that is not a RevertError is an
// infrastructure failure and must be propagated untouched.
type RevertError struct {
	// Op is the operation that reverted (e.g., "createTask").
	Op string

	// Message is the contract revert string.
	Message string

	// Err is the sentinel classifying the revert.
	Err error
}

// Error implements the error interface.
func (e *RevertError) Error() string {
	return fmt.Sprintf("%s reverted: %s", e.Op, e.Message)
}

// Unwrap returns the sentinel for errors.Is support.
func (e *RevertError) Unwrap() error {
	return e.Err
}

// NewRevert builds a RevertError for op with the given contract
// message, classified by kind.
func NewRevert(op, message string, kind error) *RevertError {
	return &RevertError{Op: op, Message: message, Err: kind}
}

// IsValidation returns true if the error is a validation revert.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error is a not-found revert.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a conflict revert.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
