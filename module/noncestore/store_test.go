package noncestore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/module/metrics"
)

type chainNonce struct {
	mu      sync.Mutex
	pending uint64
	reads   int
	err     error
}

func (c *chainNonce) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.pending, c.err
}

func TestStore_ConcurrentReservations(t *testing.T) {
	store := New(zerolog.Nop(), nil, common.Address{}, metrics.NewNoopCollector())

	const n = 100
	nonces := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nonce, err := store.ReserveNextNonce(context.Background())
			assert.NoError(t, err)
			nonces[i] = nonce
		}(i)
	}
	wg.Wait()

	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, nonce := range nonces {
		assert.Equal(t, uint64(i), nonce)
	}
}

func TestStore_SyncsFromChain(t *testing.T) {
	chain := &chainNonce{pending: 42}
	store := New(zerolog.Nop(), chain, common.Address{1}, metrics.NewNoopCollector())

	nonce, err := store.ReserveNextNonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), nonce)
	nonce, err = store.ReserveNextNonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(43), nonce)
	assert.Equal(t, 1, chain.reads)
}

func TestStore_SyncFailure(t *testing.T) {
	chain := &chainNonce{err: errors.New("unavailable")}
	store := New(zerolog.Nop(), chain, common.Address{1}, metrics.NewNoopCollector())

	_, err := store.ReserveNextNonce(context.Background())
	require.Error(t, err)

	chain.err = nil
	chain.pending = 7
	nonce, err := store.ReserveNextNonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)
}

func TestStore_RollbackLatest(t *testing.T) {
	store := New(zerolog.Nop(), nil, common.Address{}, metrics.NewNoopCollector())
	ctx := context.Background()

	first, err := store.ReserveNextNonce(ctx)
	require.NoError(t, err)
	second, err := store.ReserveNextNonce(ctx)
	require.NoError(t, err)

	store.Rollback(second)
	store.Rollback(first)

	again, err := store.ReserveNextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestStore_RollbackOutOfOrderResyncs(t *testing.T) {
	chain := &chainNonce{pending: 10}
	store := New(zerolog.Nop(), chain, common.Address{1}, metrics.NewNoopCollector())
	ctx := context.Background()

	first, err := store.ReserveNextNonce(ctx)
	require.NoError(t, err)
	second, err := store.ReserveNextNonce(ctx)
	require.NoError(t, err)

	// the first transaction failed, the second was submitted but cannot be mined
	// before nonce 10 is used
	store.Rollback(first)
	chain.pending = 10

	// still outstanding: no resync yet, reservations keep increasing
	third, err := store.ReserveNextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), third)
	assert.Equal(t, 1, chain.reads)

	store.Confirm(second)
	store.Confirm(third)

	reclaimed, err := store.ReserveNextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), reclaimed)
	assert.Equal(t, 2, chain.reads)
}

func TestStore_RollbackUnknownIsIgnored(t *testing.T) {
	store := New(zerolog.Nop(), nil, common.Address{}, metrics.NewNoopCollector())
	store.Rollback(5)

	nonce, err := store.ReserveNextNonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)
}
