package toprf

import (
	"errors"
	"fmt"
)

var (
	// ErrThresholdNotMet is returned when fewer than threshold nodes produced a valid
	// response. The error wraps the individual node failures.
	ErrThresholdNotMet = errors.New("threshold not met")

	// ErrProofVerification is returned when the combined DLEQ proof does not verify.
	// The output of such an evaluation is discarded.
	ErrProofVerification = errors.New("cannot verify dlog proof")
)

// InvalidInputError indicates that the arguments of an evaluation are invalid.
type InvalidInputError struct {
	msg string
}

func (e InvalidInputError) Error() string {
	return e.msg
}

func invalidInputErrorf(msg string, args ...interface{}) error {
	return InvalidInputError{msg: fmt.Sprintf(msg, args...)}
}

// IsInvalidInputError returns whether err is an InvalidInputError.
func IsInvalidInputError(err error) bool {
	var target InvalidInputError
	return errors.As(err, &target)
}

// thresholdNotMetError carries the node failures that prevented the threshold.
type thresholdNotMetError struct {
	threshold int
	valid     int
	failures  error
}

func (e *thresholdNotMetError) Error() string {
	msg := fmt.Sprintf("%v: %d valid responses, %d required", ErrThresholdNotMet, e.valid, e.threshold)
	if e.failures != nil {
		msg += ": " + e.failures.Error()
	}
	return msg
}

func (e *thresholdNotMetError) Is(target error) bool {
	return target == ErrThresholdNotMet
}

func (e *thresholdNotMetError) Unwrap() error {
	return e.failures
}
