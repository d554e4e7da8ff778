package dkg

import (
	"errors"
	"fmt"

	"github.com/oprf-network/oprf-node/model/dkg"
	"github.com/oprf-network/oprf-node/model/oprf"
)

// AbortError is returned when a key generation instance aborted. Aborts need operator
// attention or a new request from the registry, retrying the same instance does not help.
type AbortError struct {
	InstanceID string
	State      dkg.State
	Round      int
	Reason     string
	// Culprits lists the participants held responsible, if any could be identified.
	Culprits []oprf.PartyID
	Err      error
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("key generation %s aborted in %s (round %d): %s", e.InstanceID, e.State, e.Round, e.Reason)
	if len(e.Culprits) > 0 {
		msg += fmt.Sprintf(" (participants %v)", e.Culprits)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsAbortError returns whether err is an AbortError.
func IsAbortError(err error) bool {
	var abortErr *AbortError
	return errors.As(err, &abortErr)
}

// InvalidStateTransitionError happens when an invalid state transition is
// attempted.
type InvalidStateTransitionError struct {
	From dkg.State
	To   dkg.State
}

func (e InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// NewInvalidStateTransitionError creates a new InvalidStateTransitionError
// between the specified states.
func NewInvalidStateTransitionError(from dkg.State, to dkg.State) InvalidStateTransitionError {
	return InvalidStateTransitionError{
		From: from,
		To:   to,
	}
}

func IsInvalidStateTransitionError(err error) bool {
	var e InvalidStateTransitionError
	return errors.As(err, &e)
}
