package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

const defaultReceiptPollInterval = 3 * time.Second

// ReceiptClient is the subset of ethclient.Client the poller uses.
type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ReceiptPoller is the pull confirmation transport: it polls for the receipt
// of each watched transaction and decodes its logs client-side. It yields the
// same normalized triple as the event subscription.
type ReceiptPoller struct {
	client   ReceiptClient
	contract common.Address
	abi      abi.ABI
	interval time.Duration

	out    chan Confirmation
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
	once   sync.Once
}

// NewReceiptPoller creates a poller for the registry contract.
func NewReceiptPoller(ctx context.Context, client ReceiptClient, contractAddress string, interval time.Duration) (*ReceiptPoller, error) {
	parsed, err := RegistryABI()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = defaultReceiptPollInterval
	}
	pollCtx, cancel := context.WithCancel(ctx)
	return &ReceiptPoller{
		client:   client,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
		interval: interval,
		out:      make(chan Confirmation, 16),
		cancel:   cancel,
		ctx:      pollCtx,
	}, nil
}

// Watch starts polling for the receipt of tx. Safe to call for any number of
// in-flight transactions.
func (p *ReceiptPoller) Watch(tx TxHandle) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(common.HexToHash(string(tx)))
	}()
}

func (p *ReceiptPoller) poll(txHash common.Hash) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			receipt, err := p.client.TransactionReceipt(p.ctx, txHash)
			if err != nil || receipt == nil {
				// Not mined yet; keep polling until the coordinator's own
				// timeout gives up on the registration.
				continue
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				log.Warn().Str("tx_hash", txHash.Hex()).Msg("Transaction reverted, no confirmation to deliver")
				return
			}
			p.deliver(receipt)
			return
		}
	}
}

func (p *ReceiptPoller) deliver(receipt *types.Receipt) {
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != p.contract {
			continue
		}
		conf, err := decodeLockRegistered(p.abi, *lg)
		if err != nil {
			continue
		}
		select {
		case p.out <- *conf:
		case <-p.ctx.Done():
			return
		}
	}
}

// Confirmations returns the normalized confirmation stream.
func (p *ReceiptPoller) Confirmations() <-chan Confirmation {
	return p.out
}

// Close stops all polling goroutines and closes the confirmation channel.
func (p *ReceiptPoller) Close() error {
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		close(p.out)
	})
	return nil
}
