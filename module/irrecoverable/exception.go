package irrecoverable

import (
	"errors"
	"fmt"
)

// exception represents an unexpected error. An unexpected error is any error returned
// by a function, other than the error specifically documented as expected in that
// function's interface.
//
// It wraps an unexpected error, which allows error handling logic to use errors.Is
// to check for sentinels, while guaranteeing that a caller cannot mistake it for one
// of its own expected errors by matching against a sentinel.
type exception struct {
	err error
}

// Error returns the error string of the exception. It is always prefixed by
// `[exception!]` to easily differentiate unexpected errors in logs.
func (e exception) Error() string {
	return "[exception!] " + e.err.Error()
}

func (e exception) Unwrap() error {
	return e.err
}

// NewException wraps the input error as an exception, stripping any sentinel error
// information from the error string.
func NewException(err error) error {
	return exception{err: err}
}

// NewExceptionf is NewException with the ability to add formatting and context to the error text.
func NewExceptionf(msg string, args ...any) error {
	return NewException(fmt.Errorf(msg, args...))
}

// IsException returns true if the error wraps an exception.
func IsException(err error) bool {
	var e exception
	return errors.As(err, &e)
}
