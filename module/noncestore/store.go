package noncestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/module"
)

// NonceReader reads the pending nonce of an account from the chain.
// *ethclient.Client implements it.
type NonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Store implements module.NonceStore for a single wallet. Reservations are serialized
// by a mutex. The store syncs from the chain before the first reservation; after a
// reservation other than the latest one is rolled back it is marked stale and resyncs
// once no reservation is outstanding, so the skipped nonce is reclaimed.
type Store struct {
	mu          sync.Mutex
	log         zerolog.Logger
	reader      NonceReader // nil: start at zero and never resync
	account     common.Address
	metrics     module.WalletMetrics
	synced      bool
	stale       bool
	next        uint64
	outstanding map[uint64]struct{}
}

var _ module.NonceStore = (*Store)(nil)

// New returns a nonce store for the given account. reader may be nil, in which case
// nonces start at zero.
func New(log zerolog.Logger, reader NonceReader, account common.Address, metrics module.WalletMetrics) *Store {
	return &Store{
		log:         log.With().Str("component", "nonce_store").Str("account", account.Hex()).Logger(),
		reader:      reader,
		account:     account,
		metrics:     metrics,
		outstanding: make(map[uint64]struct{}),
	}
}

// ReserveNextNonce reserves the next nonce of the wallet.
// No errors are expected during normal operation, except for failures to read the
// pending nonce from the chain.
func (s *Store) ReserveNextNonce(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if (!s.synced || s.stale) && len(s.outstanding) == 0 {
		err := s.sync(ctx)
		if err != nil {
			return 0, err
		}
	}

	nonce := s.next
	s.next++
	s.outstanding[nonce] = struct{}{}
	s.metrics.NonceReserved(nonce)
	return nonce, nil
}

// Confirm marks a reserved nonce as used by a submitted transaction.
func (s *Store) Confirm(nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outstanding, nonce)
}

// Rollback releases a reserved nonce whose transaction was not submitted. The latest
// reservation is handed out again by the next call, earlier ones are reclaimed by a
// resync from the chain.
func (s *Store) Rollback(nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outstanding[nonce]; !ok {
		s.log.Warn().Uint64("nonce", nonce).Msg("rollback of a nonce that is not reserved")
		return
	}
	delete(s.outstanding, nonce)
	if nonce+1 == s.next {
		s.next = nonce
		return
	}
	s.log.Info().Uint64("nonce", nonce).Msg("rolled back nonce out of order, resyncing once idle")
	s.stale = true
}

// sync reads the pending nonce from the chain. Must be called with the lock held.
func (s *Store) sync(ctx context.Context) error {
	if s.reader == nil {
		s.synced = true
		s.stale = false
		return nil
	}
	pending, err := s.reader.PendingNonceAt(ctx, s.account)
	if err != nil {
		return fmt.Errorf("could not read pending nonce of %s: %w", s.account.Hex(), err)
	}
	if s.synced {
		s.metrics.NonceResynced()
		s.log.Info().Uint64("local", s.next).Uint64("chain", pending).Msg("resynced nonce from chain")
	}
	s.next = pending
	s.synced = true
	s.stale = false
	return nil
}
