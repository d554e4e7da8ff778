package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/oprf-network/oprf-node/model/oprf"
)

// InsertKeyMaterial stores the OPRF key material of a (key id, epoch) pair.
//
// CAUTION: This method stores confidential information and should only be
// used in the context of the secrets database. This is enforced in the above
// layer (see storage.SecretManager).
func InsertKeyMaterial(keyID oprf.KeyID, epoch oprf.ShareEpoch, material *oprf.EncodableKeyMaterial) func(*badger.Txn) error {
	return insert(makePrefix(codeKeyMaterial, keyID, epoch), material)
}

// RetrieveKeyMaterial retrieves the OPRF key material of a (key id, epoch) pair.
//
// CAUTION: This method reads confidential information and should only be
// used in the context of the secrets database.
func RetrieveKeyMaterial(keyID oprf.KeyID, epoch oprf.ShareEpoch, material *oprf.EncodableKeyMaterial) func(*badger.Txn) error {
	return retrieve(makePrefix(codeKeyMaterial, keyID, epoch), material)
}

// TraverseKeyMaterial calls handle for the material of every (key id, epoch) pair, in
// ascending key id and epoch order.
func TraverseKeyMaterial(handle func(*oprf.EncodableKeyMaterial) error) func(*badger.Txn) error {
	var current *oprf.EncodableKeyMaterial
	create := func() interface{} {
		current = new(oprf.EncodableKeyMaterial)
		return current
	}
	return traverse(makePrefix(codeKeyMaterial), create, func() error {
		return handle(current)
	})
}

// InsertWalletPrivateKey stores the raw secp256k1 private key of the node's wallet.
func InsertWalletPrivateKey(raw []byte) func(*badger.Txn) error {
	return insert(makePrefix(codeWalletKey), raw)
}

// RetrieveWalletPrivateKey retrieves the raw private key of the node's wallet.
func RetrieveWalletPrivateKey(raw *[]byte) func(*badger.Txn) error {
	return retrieve(makePrefix(codeWalletKey), raw)
}
