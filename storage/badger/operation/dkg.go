package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/oprf-network/oprf-node/model/dkg"
	"github.com/oprf-network/oprf-node/model/oprf"
)

// InsertKeyGenRecord stores the first durable record of a key generation instance.
func InsertKeyGenRecord(keyID oprf.KeyID, epoch oprf.ShareEpoch, record *dkg.Record) func(*badger.Txn) error {
	return insert(makePrefix(codeKeyGenRecord, keyID, epoch), record)
}

// UpdateKeyGenRecord replaces the record of a key generation instance.
func UpdateKeyGenRecord(keyID oprf.KeyID, epoch oprf.ShareEpoch, record *dkg.Record) func(*badger.Txn) error {
	return update(makePrefix(codeKeyGenRecord, keyID, epoch), record)
}

// RetrieveKeyGenRecord retrieves the record of a key generation instance.
func RetrieveKeyGenRecord(keyID oprf.KeyID, epoch oprf.ShareEpoch, record *dkg.Record) func(*badger.Txn) error {
	return retrieve(makePrefix(codeKeyGenRecord, keyID, epoch), record)
}
