package core

import (
	"errors"
	"fmt"
)

// Catalog build errors. These are fatal to harness construction.
var (
	ErrInvalidSpecification = errors.New("invalid specification")
	ErrDuplicateOperationID = errors.New("duplicate operation id")
	ErrUnsupportedMethod    = errors.New("unsupported method")
)

// Executor errors. These are fatal to a run unless the step expects failure.
// Timeouts always degrade to scored checks.
var (
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrMissingPathParameter = errors.New("missing path parameter")
	ErrConnection           = errors.New("connection error")
	ErrRequestTimeout       = errors.New("request timeout")
)

// Orchestration errors.
var (
	ErrLifecycle     = errors.New("lifecycle failure")
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrBelowThreshold is returned by ExecuteGrade when a rating misses the gate.
	ErrBelowThreshold = errors.New("rating below threshold")
)

// AssertionError is the failure kind raised by assertion functions.
// The scorer absorbs this kind and nothing else.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Failf returns an *AssertionError with a formatted message.
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertionFailure reports whether err is, or wraps, an *AssertionError.
func IsAssertionFailure(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

// isCallFailure reports whether err is one of the executor errors above.
func isCallFailure(err error) bool {
	return errors.Is(err, ErrUnknownOperation) ||
		errors.Is(err, ErrMissingPathParameter) ||
		errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrRequestTimeout)
}
