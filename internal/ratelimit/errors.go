package ratelimit

import (
	"errors"
	"fmt"
)

const (
	abandonedMessageConstant       = "operation abandoned after repeated rate limiting"
	abandonedErrorTemplateConstant = "%s abandoned after %d rate-limited attempts: %v"
	fatalErrorTemplateConstant     = "%s failed: %v"
)

// ErrAbandoned matches every AbandonedError through errors.Is.
var ErrAbandoned = errors.New(abandonedMessageConstant)

// AbandonedError reports an operation that reached the retry ceiling.
type AbandonedError struct {
	Operation string
	Attempts  int
	LastCause error
}

// Error describes the abandoned operation.
func (abandonedError AbandonedError) Error() string {
	return fmt.Sprintf(abandonedErrorTemplateConstant, abandonedError.Operation, abandonedError.Attempts, abandonedError.LastCause)
}

// Unwrap exposes the last rate-limit rejection.
func (abandonedError AbandonedError) Unwrap() error {
	return abandonedError.LastCause
}

// Is matches ErrAbandoned.
func (abandonedError AbandonedError) Is(target error) bool {
	return target == ErrAbandoned
}

// FatalError reports a failure that is not retried.
type FatalError struct {
	Operation string
	Cause     error
}

// Error describes the failure.
func (fatalError FatalError) Error() string {
	return fmt.Sprintf(fatalErrorTemplateConstant, fatalError.Operation, fatalError.Cause)
}

// Unwrap exposes the underlying cause.
func (fatalError FatalError) Unwrap() error {
	return fatalError.Cause
}
