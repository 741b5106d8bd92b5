package ledger

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// TxHandle identifies a submitted transaction (hash hex).
type TxHandle string

// Confirmation is the normalized registration confirmation triple. Both
// confirmation transports (event subscription, receipt-log parsing) yield this
// shape; consumers never see which transport delivered it.
type Confirmation struct {
	ChainID   int64
	Owner     string
	PublicKey string
}

// Writer submits state-changing transactions to the ledger.
type Writer interface {
	Submit(ctx context.Context, function string, args ...interface{}) (TxHandle, error)
}

// Reader executes read-only calls against the ledger.
type Reader interface {
	Call(ctx context.Context, function string, args ...interface{}) ([]interface{}, error)
}

// ConfirmationSource delivers confirmed registrations. Delivery is
// at-least-once; consumers must deduplicate.
type ConfirmationSource interface {
	Confirmations() <-chan Confirmation
	Close() error
}

// BytesFromHex decodes a 0x-prefixed hex string.
func BytesFromHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex string")
	}
	return raw, nil
}

// Bytes32FromHex decodes a 0x-prefixed hex string into a fixed 32-byte array,
// the shape the contract expects for payload hashes.
func Bytes32FromHex(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := BytesFromHex(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, errors.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
