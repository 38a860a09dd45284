package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable marks a store connection, timeout or protocol failure.
	// Store adapters wrap every transport error with it.
	ErrBackendUnavailable = errors.New("memory backend unavailable")

	// ErrValidation marks a request missing a required field or carrying an
	// out-of-range value.
	ErrValidation = errors.New("validation error")
)

// Unavailable wraps err as a backend failure for op.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

// ValidationError is a rejected request. Its message is safe to show to
// the caller; errors.Is matches it against ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a validation error with a descriptive message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
