package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module/metrics"
	"github.com/oprf-network/oprf-node/module/noncestore"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

var contract = common.HexToAddress("0x00000000000000000000000000000000000c0ffe")

type fakeChain struct {
	latest  uint64
	logs    []types.Log
	query   ethereum.FilterQuery
	sent    []*types.Transaction
	sendErr error
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeChain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.query = q
	return f.logs, nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func keyGenLog(t *testing.T, keyID oprf.KeyID, epoch uint64, threshold uint16, block uint64) types.Log {
	parsed, err := ParsedABI()
	require.NoError(t, err)
	event := parsed.Events[eventKeyGenRequested]
	data, err := event.Inputs.NonIndexed().Pack(epoch, threshold)
	require.NoError(t, err)
	return types.Log{
		Address:     contract,
		Topics:      []common.Hash{event.ID, common.Hash(keyID)},
		Data:        data,
		BlockNumber: block,
	}
}

func TestEventSource_KeyGenRequests(t *testing.T) {
	first, second := unittest.KeyIDFixture(), unittest.KeyIDFixture()
	removed := keyGenLog(t, first, 9, 3, 11)
	removed.Removed = true
	chain := &fakeChain{
		latest: 20,
		logs: []types.Log{
			keyGenLog(t, first, 1, 3, 10),
			removed,
			keyGenLog(t, second, 4, 2, 12),
		},
	}
	source, err := NewEventSource(chain, contract)
	require.NoError(t, err)

	latest, err := source.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(20), latest)

	requests, err := source.KeyGenRequests(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, []oprf.KeyGenRequest{
		{KeyID: first, Epoch: 1, Threshold: 3, BlockNumber: 10},
		{KeyID: second, Epoch: 4, Threshold: 2, BlockNumber: 12},
	}, requests)

	assert.Equal(t, uint64(10), chain.query.FromBlock.Uint64())
	assert.Equal(t, uint64(20), chain.query.ToBlock.Uint64())
	assert.Equal(t, []common.Address{contract}, chain.query.Addresses)
}

func TestEventSource_RejectsMalformedLogs(t *testing.T) {
	log := keyGenLog(t, unittest.KeyIDFixture(), 1, 3, 10)
	log.Data = log.Data[:10]
	source, err := NewEventSource(&fakeChain{logs: []types.Log{log}}, contract)
	require.NoError(t, err)

	_, err = source.KeyGenRequests(context.Background(), 0, 10)
	assert.Error(t, err)
}

func TestAnnouncer_AnnouncePublicKey(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	chainID := big.NewInt(1337)
	chain := &fakeChain{}
	nonces := noncestore.New(zerolog.Nop(), nil, ethcrypto.PubkeyToAddress(key.PublicKey), metrics.NewNoopCollector())

	announcer, err := NewAnnouncer(zerolog.Nop(), chain, contract, chainID, key, nonces, metrics.NewNoopCollector())
	require.NoError(t, err)

	keyID := unittest.KeyIDFixture()
	publicKey := unittest.RandomBytes(32)
	require.NoError(t, announcer.AnnouncePublicKey(context.Background(), keyID, 3, publicKey))
	require.NoError(t, announcer.AnnouncePublicKey(context.Background(), keyID, 4, publicKey))
	require.Len(t, chain.sent, 2)

	tx := chain.sent[0]
	assert.Equal(t, uint64(0), tx.Nonce())
	assert.Equal(t, uint64(1), chain.sent[1].Nonce())
	assert.Equal(t, contract, *tx.To())

	sender, err := types.Sender(types.NewEIP155Signer(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(key.PublicKey), sender)

	parsed, err := ParsedABI()
	require.NoError(t, err)
	method, err := parsed.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, methodSubmitPublicKey, method.Name)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, [32]byte(keyID), args[0])
	assert.Equal(t, uint64(3), args[1])
	assert.Equal(t, publicKey, args[2])
}

func TestAnnouncer_RollsBackNonceOnFailure(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	chain := &fakeChain{sendErr: errors.New("rejected")}
	nonces := noncestore.New(zerolog.Nop(), nil, ethcrypto.PubkeyToAddress(key.PublicKey), metrics.NewNoopCollector())
	announcer, err := NewAnnouncer(zerolog.Nop(), chain, contract, big.NewInt(1), key, nonces, metrics.NewNoopCollector())
	require.NoError(t, err)

	err = announcer.AnnouncePublicKey(context.Background(), unittest.KeyIDFixture(), 1, []byte{1})
	require.Error(t, err)

	chain.sendErr = nil
	require.NoError(t, announcer.AnnouncePublicKey(context.Background(), unittest.KeyIDFixture(), 1, []byte{1}))
	require.Len(t, chain.sent, 1)
	assert.Equal(t, uint64(0), chain.sent[0].Nonce())
}
