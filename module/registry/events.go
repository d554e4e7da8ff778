package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// LogReader is the part of *ethclient.Client used to read registry events.
type LogReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// EventSource reads KeyGenRequested events of the registry contract.
type EventSource struct {
	client   LogReader
	contract common.Address
	abi      abi.ABI
}

var _ module.KeyEventSource = (*EventSource)(nil)

func NewEventSource(client LogReader, contract common.Address) (*EventSource, error) {
	parsed, err := ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("could not parse registry abi: %w", err)
	}
	return &EventSource{
		client:   client,
		contract: contract,
		abi:      parsed,
	}, nil
}

func (s *EventSource) LatestBlock(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

// KeyGenRequests returns the key generation requests emitted in [fromBlock, toBlock].
// Logs removed by a reorg are skipped.
func (s *EventSource) KeyGenRequests(ctx context.Context, fromBlock, toBlock uint64) ([]oprf.KeyGenRequest, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.contract},
		Topics:    [][]common.Hash{{s.abi.Events[eventKeyGenRequested].ID}},
	}
	logs, err := s.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not filter registry logs in [%d, %d]: %w", fromBlock, toBlock, err)
	}

	requests := make([]oprf.KeyGenRequest, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		request, err := s.decode(log)
		if err != nil {
			return nil, fmt.Errorf("could not decode log %s/%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (s *EventSource) decode(log types.Log) (oprf.KeyGenRequest, error) {
	if len(log.Topics) != 2 {
		return oprf.KeyGenRequest{}, fmt.Errorf("expected 2 topics, got %d", len(log.Topics))
	}
	var event struct {
		Epoch     uint64
		Threshold uint16
	}
	err := s.abi.UnpackIntoInterface(&event, eventKeyGenRequested, log.Data)
	if err != nil {
		return oprf.KeyGenRequest{}, err
	}
	if event.Threshold == 0 {
		return oprf.KeyGenRequest{}, fmt.Errorf("zero threshold")
	}
	return oprf.KeyGenRequest{
		KeyID:       oprf.KeyID(log.Topics[1]),
		Epoch:       oprf.ShareEpoch(event.Epoch),
		Threshold:   event.Threshold,
		BlockNumber: log.BlockNumber,
	}, nil
}
