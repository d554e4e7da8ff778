package module

import (
	"context"

	"github.com/oprf-network/oprf-node/model/oprf"
)

// KeyEventSource reads key generation requests from the key registry.
type KeyEventSource interface {
	// LatestBlock returns the most recent block of the chain.
	LatestBlock(ctx context.Context) (uint64, error)

	// KeyGenRequests returns the requests emitted in blocks [fromBlock, toBlock], in
	// emission order.
	KeyGenRequests(ctx context.Context, fromBlock, toBlock uint64) ([]oprf.KeyGenRequest, error)
}

// PublicKeyAnnouncer publishes the public key of a committed share set to the key
// registry. Announcing the same key twice must be harmless.
type PublicKeyAnnouncer interface {
	AnnouncePublicKey(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch, publicKey []byte) error
}

// NonceStore hands out the transaction nonces of the node's wallet.
type NonceStore interface {
	// ReserveNextNonce reserves the next nonce. Concurrent callers never receive the
	// same nonce and reservations are strictly increasing.
	ReserveNextNonce(ctx context.Context) (uint64, error)

	// Confirm marks a reserved nonce as consumed by a submitted transaction.
	Confirm(nonce uint64)

	// Rollback releases a reserved nonce whose transaction was not submitted.
	Rollback(nonce uint64)
}
