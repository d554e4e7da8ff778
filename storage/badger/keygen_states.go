package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/oprf-network/oprf-node/model/dkg"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/storage"
	"github.com/oprf-network/oprf-node/storage/badger/operation"
)

// KeyGenStates stores the durable records of key generation instances.
// Only the terminal boundaries are written: the first record of an instance is either
// Committed or Aborted, and the only later change is marking a committed public key as
// announced.
type KeyGenStates struct {
	db *badger.DB
}

var _ storage.KeyGenStates = (*KeyGenStates)(nil)

func NewKeyGenStates(db *badger.DB) *KeyGenStates {
	return &KeyGenStates{db: db}
}

func (s *KeyGenStates) GetKeyGenRecord(keyID oprf.KeyID, epoch oprf.ShareEpoch) (*dkg.Record, error) {
	var record dkg.Record
	err := s.db.View(operation.RetrieveKeyGenRecord(keyID, epoch, &record))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve key generation record: %w", err)
	}
	return &record, nil
}

// SetKeyGenState records that the instance for (keyID, epoch) reached a terminal state.
// Recording the same terminal state twice is a no-op, which keeps commits retriable.
func (s *KeyGenStates) SetKeyGenState(keyID oprf.KeyID, epoch oprf.ShareEpoch, state dkg.State, publicKey []byte, reason string) error {
	if !state.IsTerminal() {
		return storage.NewInvalidKeyGenStateTransitionError(dkg.NotStarted, state)
	}
	return operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		var current dkg.Record
		err := operation.RetrieveKeyGenRecord(keyID, epoch, &current)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			record := &dkg.Record{State: state, PublicKey: publicKey, Reason: reason}
			return operation.InsertKeyGenRecord(keyID, epoch, record)(tx)
		}
		if err != nil {
			return fmt.Errorf("could not read current key generation record: %w", err)
		}
		if current.State != state {
			return storage.NewInvalidKeyGenStateTransitionError(current.State, state)
		}
		return nil
	})
}

func (s *KeyGenStates) SetAnnounced(keyID oprf.KeyID, epoch oprf.ShareEpoch) error {
	return operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		var current dkg.Record
		err := operation.RetrieveKeyGenRecord(keyID, epoch, &current)(tx)
		if err != nil {
			return fmt.Errorf("could not read current key generation record: %w", err)
		}
		if current.State != dkg.Committed {
			return storage.NewInvalidKeyGenStateTransitionError(current.State, dkg.Committed)
		}
		if current.Announced {
			return nil
		}
		current.Announced = true
		return operation.UpdateKeyGenRecord(keyID, epoch, &current)(tx)
	})
}
