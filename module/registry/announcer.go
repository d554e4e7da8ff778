package registry

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// TransactionSender is the part of *ethclient.Client used to submit transactions.
type TransactionSender interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Announcer submits the public keys of committed share sets to the registry, signed
// with the node's wallet key.
type Announcer struct {
	log      zerolog.Logger
	client   TransactionSender
	contract common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	nonces   module.NonceStore
	metrics  module.WalletMetrics
	abi      abi.ABI
}

var _ module.PublicKeyAnnouncer = (*Announcer)(nil)

func NewAnnouncer(
	log zerolog.Logger,
	client TransactionSender,
	contract common.Address,
	chainID *big.Int,
	key *ecdsa.PrivateKey,
	nonces module.NonceStore,
	metrics module.WalletMetrics,
) (*Announcer, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("could not parse registry abi: %w", err)
	}
	return &Announcer{
		log:      log.With().Str("component", "registry_announcer").Logger(),
		client:   client,
		contract: contract,
		chainID:  chainID,
		key:      key,
		from:     ethcrypto.PubkeyToAddress(key.PublicKey),
		nonces:   nonces,
		metrics:  metrics,
		abi:      parsed,
	}, nil
}

// AnnouncePublicKey submits a submitPublicKey transaction. The reserved nonce is
// confirmed once the transaction was accepted by the node and rolled back otherwise.
func (a *Announcer) AnnouncePublicKey(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch, publicKey []byte) error {
	data, err := a.abi.Pack(methodSubmitPublicKey, [32]byte(keyID), uint64(epoch), publicKey)
	if err != nil {
		return fmt.Errorf("could not pack %s call: %w", methodSubmitPublicKey, err)
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("could not get gas price: %w", err)
	}
	gas, err := a.client.EstimateGas(ctx, ethereum.CallMsg{
		From: a.from,
		To:   &a.contract,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("could not estimate gas: %w", err)
	}

	nonce, err := a.nonces.ReserveNextNonce(ctx)
	if err != nil {
		return fmt.Errorf("could not reserve nonce: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &a.contract,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), a.key)
	if err != nil {
		a.nonces.Rollback(nonce)
		return fmt.Errorf("could not sign transaction: %w", err)
	}

	err = a.client.SendTransaction(ctx, signed)
	if err != nil {
		a.nonces.Rollback(nonce)
		a.metrics.TransactionFailed()
		return fmt.Errorf("could not send transaction: %w", err)
	}
	a.nonces.Confirm(nonce)
	a.metrics.TransactionSubmitted()

	a.log.Info().
		Str("key_id", keyID.String()).
		Uint64("epoch", uint64(epoch)).
		Uint64("nonce", nonce).
		Str("tx_hash", signed.Hash().Hex()).
		Msg("submitted public key")
	return nil
}
