// Package apperrors defines the error taxonomy shared by all engine
// operations. Every error returned by a service wraps exactly one of the
// sentinel kinds below, so callers classify with errors.Is and map to a
// transport code without inspecting messages.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a referenced auction, bid, card or user that does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a state-machine precondition violation: wrong
	// status, not the owner, duplicate pending bid, self-bid, insufficient
	// balance at settlement.
	ErrConflict = errors.New("conflict")

	// ErrTransient marks a transaction that could not commit due to store
	// contention. The caller may retry; the sweep retries on its next pass.
	ErrTransient = errors.New("transient store error")
)

func Validationf(format string, args ...interface{}) error {
	return wrap(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...interface{}) error {
	return wrap(ErrNotFound, format, args...)
}

func Conflictf(format string, args ...interface{}) error {
	return wrap(ErrConflict, format, args...)
}

func Transientf(format string, args ...interface{}) error {
	return wrap(ErrTransient, format, args...)
}

func wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether an operation that failed with err is safe and
// worth retrying as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
