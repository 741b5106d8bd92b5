package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventSubscription is the push confirmation transport: a live log
// subscription on the registry contract, decoded into normalized triples.
type EventSubscription struct {
	filterer ethereum.LogFilterer
	contract common.Address
	abi      abi.ABI

	out    chan Confirmation
	sub    ethereum.Subscription
	cancel context.CancelFunc
	once   sync.Once
}

// NewEventSubscription opens a LockRegistered subscription on the contract.
func NewEventSubscription(ctx context.Context, filterer ethereum.LogFilterer, contractAddress string) (*EventSubscription, error) {
	parsed, err := RegistryABI()
	if err != nil {
		return nil, err
	}
	contract := common.HexToAddress(contractAddress)

	logs := make(chan types.Log, 16)
	subCtx, cancel := context.WithCancel(ctx)
	sub, err := filterer.SubscribeFilterLogs(subCtx, ethereum.FilterQuery{
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{parsed.Events["LockRegistered"].ID}},
	}, logs)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "failed to subscribe to registry logs")
	}

	s := &EventSubscription{
		filterer: filterer,
		contract: contract,
		abi:      parsed,
		out:      make(chan Confirmation, 16),
		sub:      sub,
		cancel:   cancel,
	}

	go s.pump(subCtx, logs)
	return s, nil
}

func (s *EventSubscription) pump(ctx context.Context, logs <-chan types.Log) {
	defer close(s.out)
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-s.sub.Err():
			if err != nil {
				log.Error().Err(err).Msg("Registry log subscription failed")
			}
			return
		case lg := <-logs:
			conf, err := decodeLockRegistered(s.abi, lg)
			if err != nil {
				log.Warn().Err(err).Str("tx_hash", lg.TxHash.Hex()).Msg("Skipping undecodable registry log")
				continue
			}
			select {
			case s.out <- *conf:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Confirmations returns the normalized confirmation stream.
func (s *EventSubscription) Confirmations() <-chan Confirmation {
	return s.out
}

// Close cancels the subscription. The confirmation channel is closed once the
// pump drains.
func (s *EventSubscription) Close() error {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		s.cancel()
	})
	return nil
}
