package storage

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oprf-network/oprf-node/model/oprf"
)

// SecretManager stores the node's OPRF key material, keyed by (key id, epoch), and the
// private key of the node's wallet. Implementations exist for a local badger database,
// AWS Secrets Manager and Postgres.
//
// Key material is write-once: once material exists for a (key id, epoch) pair it is
// never replaced, so that all nodes keep a consistent share set.
type SecretManager interface {

	// LoadAddress returns the address of the node's wallet.
	// Error returns: storage.ErrNotFound if no wallet key was created yet.
	LoadAddress(ctx context.Context) (common.Address, error)

	// LoadSecrets returns the material of the latest epoch of every key id the node
	// holds. It is used to warm caches on startup.
	// No errors are expected during normal operation.
	LoadSecrets(ctx context.Context) (map[oprf.KeyID]*oprf.KeyMaterial, error)

	// GetKeyMaterial returns the material for exactly (keyID, epoch).
	// Error returns: storage.ErrNotFound if no material exists for the pair.
	GetKeyMaterial(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch) (*oprf.KeyMaterial, error)

	// InsertKeyMaterial persists the material for its (key id, epoch) pair. Inserting
	// identical material again is a no-op, which makes commits safely retriable.
	// Error returns: storage.ErrDataMismatch if different material already exists.
	InsertKeyMaterial(ctx context.Context, material *oprf.KeyMaterial) error

	// LoadOrInsertWalletPrivateKey returns the node's wallet key, generating and
	// persisting one on first use. Concurrent first callers converge on one key.
	// No errors are expected during normal operation.
	LoadOrInsertWalletPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error)
}
