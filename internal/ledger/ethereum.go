package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// registryABI is the lock registry contract surface the agent talks to.
const registryABI = `[
	{"type":"function","name":"registerLock","inputs":[{"name":"publicKey","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"revokeCredential","inputs":[{"name":"lockId","type":"uint256"},{"name":"payloadHash","type":"bytes32"},{"name":"signature","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"revokeCredentialBatch","inputs":[{"name":"lockId","type":"uint256"},{"name":"payloadHashes","type":"bytes32[]"},{"name":"signatures","type":"bytes[]"}],"outputs":[]},
	{"type":"function","name":"getLock","inputs":[{"name":"lockId","type":"uint256"}],"outputs":[{"name":"owner","type":"address"},{"name":"publicKey","type":"bytes"}],"stateMutability":"view"},
	{"type":"event","name":"LockRegistered","inputs":[{"name":"lockId","type":"uint256","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"publicKey","type":"bytes","indexed":false}],"anonymous":false}
]`

const submitGasLimit = 300000

// RegistryABI parses the registry contract ABI.
func RegistryABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return abi.ABI{}, errors.Wrap(err, "failed to parse registry abi")
	}
	return parsed, nil
}

// EthereumClient is the subset of ethclient.Client the adapter uses.
type EthereumClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ EthereumClient = (*ethclient.Client)(nil)

// EthereumAdapter implements Writer and Reader against the registry contract.
type EthereumAdapter struct {
	client   EthereumClient
	contract common.Address
	abi      abi.ABI
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
}

// NewEthereumAdapter creates the adapter. walletKeyHex signs submitted
// transactions; it is the device owner's wallet key, not a lock key.
func NewEthereumAdapter(client EthereumClient, contractAddress string, chainID *big.Int, walletKeyHex string) (*EthereumAdapter, error) {
	parsed, err := RegistryABI()
	if err != nil {
		return nil, err
	}
	if chainID == nil {
		chainID = big.NewInt(1) // mainnet
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(walletKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode wallet key")
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid wallet key")
	}
	return &EthereumAdapter{
		client:   client,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
		chainID:  chainID,
		key:      key,
		from:     ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Submit packs, signs and sends a contract call as a transaction. Returns the
// transaction hash; confirmation arrives later through a ConfirmationSource.
func (a *EthereumAdapter) Submit(ctx context.Context, function string, args ...interface{}) (TxHandle, error) {
	data, err := a.abi.Pack(function, args...)
	if err != nil {
		return "", errors.Wrapf(err, "failed to pack %s call", function)
	}

	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return "", errors.Wrap(err, "failed to get pending nonce")
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to suggest gas price")
	}

	tx := types.NewTransaction(nonce, a.contract, big.NewInt(0), submitGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.chainID), a.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrapf(err, "failed to send %s transaction", function)
	}

	log.Info().
		Str("function", function).
		Str("tx_hash", signed.Hash().Hex()).
		Str("contract", a.contract.Hex()).
		Msg("Submitted ledger transaction")

	return TxHandle(signed.Hash().Hex()), nil
}

// Call executes a read-only contract call and unpacks the outputs.
func (a *EthereumAdapter) Call(ctx context.Context, function string, args ...interface{}) ([]interface{}, error) {
	data, err := a.abi.Pack(function, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s call", function)
	}

	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.contract, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", function)
	}

	values, err := a.abi.Unpack(function, out)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s result", function)
	}
	return values, nil
}

// decodeLockRegistered decodes a LockRegistered log into the normalized triple.
func decodeLockRegistered(contractABI abi.ABI, lg types.Log) (*Confirmation, error) {
	event := contractABI.Events["LockRegistered"]
	if len(lg.Topics) != 3 || lg.Topics[0] != event.ID {
		return nil, errors.New("not a LockRegistered log")
	}

	lockID := new(big.Int).SetBytes(lg.Topics[1].Bytes())
	owner := common.BytesToAddress(lg.Topics[2].Bytes())

	unpacked, err := contractABI.Unpack("LockRegistered", lg.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack LockRegistered data")
	}
	publicKey, ok := unpacked[0].([]byte)
	if !ok {
		return nil, errors.New("unexpected publicKey type in LockRegistered log")
	}

	return &Confirmation{
		ChainID:   lockID.Int64(),
		Owner:     strings.ToLower(owner.Hex()),
		PublicKey: "0x" + hex.EncodeToString(publicKey),
	}, nil
}
