package module

import (
	"time"
)

type CacheMetrics interface {
	// CacheEntries report the total number of cached items
	CacheEntries(resource string, entries uint)
	// CacheHit report the number of times the queried item is found in the cache
	CacheHit(resource string)
	// CacheNotFound records the number of times the queried item was not found in either cache or database.
	CacheNotFound(resource string)
	// CacheMiss report the number of times the queried item is not found in the cache, but found in the database.
	CacheMiss(resource string)
}

// OPRFMetrics tracks the node side of distributed evaluations.
type OPRFMetrics interface {
	// PartialEvaluation records the duration of the first round of a session.
	PartialEvaluation(duration time.Duration)
	// ProofShare records the duration of the challenge round of a session.
	ProofShare(duration time.Duration)
	// SessionRejected counts sessions refused with the given wire error code.
	SessionRejected(code string)
	// OpenSessions reports the number of sessions waiting for their challenge.
	OpenSessions(sessions uint)
}

// KeyGenMetrics tracks the key event watcher and the key generation instances it runs.
type KeyGenMetrics interface {
	// KeyEventsPolled reports the block up to which key events have been handled.
	KeyEventsPolled(block uint64)
	KeyGenStarted()
	KeyGenCommitted(duration time.Duration)
	KeyGenAborted()
	// PublicKeyAnnounced counts public keys announced to the registry.
	PublicKeyAnnounced()
}

// WalletMetrics tracks the transactions sent from the node's wallet.
type WalletMetrics interface {
	// NonceReserved reports the last reserved transaction nonce.
	NonceReserved(nonce uint64)
	// NonceResynced counts resyncs of the nonce store from the chain.
	NonceResynced()
	TransactionSubmitted()
	TransactionFailed()
}
