package todo

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no todo matches the given id.
var ErrNotFound = errors.New("Todo not found")

// ValidationError reports a body that failed schema coercion.
// Field names the offending property when there is exactly one.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Op identifies which side of the store failed.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// PersistenceError wraps a failure reported by the underlying store.
type PersistenceError struct {
	Op  Op
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func readError(msg string, err error) error {
	return &PersistenceError{Op: OpRead, Err: fmt.Errorf("%s: %w", msg, err)}
}

func writeError(msg string, err error) error {
	return &PersistenceError{Op: OpWrite, Err: fmt.Errorf("%s: %w", msg, err)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceOp returns the failing side of a PersistenceError, if err is one.
func PersistenceOp(err error) (Op, bool) {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Op, true
	}
	return "", false
}
