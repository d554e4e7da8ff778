package storage

import (
	"errors"
	"fmt"

	"github.com/oprf-network/oprf-node/model/dkg"
	"github.com/oprf-network/oprf-node/model/oprf"
)

// KeyGenStates is the storage interface for the durable records of key generation
// instances. Records are only written at terminal boundaries of the state machine,
// see dkg.Record.
type KeyGenStates interface {

	// GetKeyGenRecord retrieves the record of the instance for (keyID, epoch).
	// Error returns: storage.ErrNotFound
	GetKeyGenRecord(keyID oprf.KeyID, epoch oprf.ShareEpoch) (*dkg.Record, error)

	// SetKeyGenState records that the instance reached a terminal state.
	// Error returns: InvalidKeyGenStateTransitionError
	SetKeyGenState(keyID oprf.KeyID, epoch oprf.ShareEpoch, state dkg.State, publicKey []byte, reason string) error

	// SetAnnounced records that the public key of a committed instance was announced.
	// Error returns: storage.ErrNotFound, InvalidKeyGenStateTransitionError
	SetAnnounced(keyID oprf.KeyID, epoch oprf.ShareEpoch) error
}

// InvalidKeyGenStateTransitionError is returned when recording a state that cannot be
// reached from the currently recorded one.
type InvalidKeyGenStateTransitionError struct {
	From dkg.State
	To   dkg.State
}

func (e InvalidKeyGenStateTransitionError) Error() string {
	return fmt.Sprintf("invalid key generation state transition from %s to %s", e.From, e.To)
}

func NewInvalidKeyGenStateTransitionError(from, to dkg.State) error {
	return InvalidKeyGenStateTransitionError{From: from, To: to}
}

func IsInvalidKeyGenStateTransitionError(err error) bool {
	var e InvalidKeyGenStateTransitionError
	return errors.As(err, &e)
}
