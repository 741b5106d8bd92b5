package credential

import (
	"encoding/json"
	"time"

	"github.com/latchguard/go-lock-agent/internal/crypto"
)

// signedPayload is the exact content committed by a credential signature.
// Field order is fixed by the struct; both issuance and revocation marshal
// through this type, so the committed hash is identical in every context
// (hash continuity). Revocation matches credentials by this hash on the
// ledger: any divergence would make a legitimately-issued credential
// unrevokable.
type signedPayload struct {
	LockID       int64  `json:"lock_id"`
	MetadataHash string `json:"metadata_hash"`
	ValidFrom    int64  `json:"valid_from"`
	ValidUntil   int64  `json:"valid_until"` // 0 = non-expiring
}

// PayloadBytes serializes the signed payload canonically.
func PayloadBytes(lockID int64, metadataHash string, validFrom time.Time, validUntil *time.Time) []byte {
	payload := signedPayload{
		LockID:       lockID,
		MetadataHash: metadataHash,
		ValidFrom:    validFrom.Unix(),
	}
	if validUntil != nil {
		payload.ValidUntil = validUntil.Unix()
	}
	// Marshaling a flat struct of primitives cannot fail
	data, _ := json.Marshal(payload)
	return data
}

// ComputePayloadHash recomputes the committed hash for a credential's fields.
// For any issued credential this must equal its SignedPayloadHash.
func ComputePayloadHash(lockID int64, metadataHash string, validFrom time.Time, validUntil *time.Time) string {
	return crypto.Keccak256Hex(PayloadBytes(lockID, metadataHash, validFrom, validUntil))
}

// MetadataHash canonically serializes and hashes recipient metadata. Only
// this hash ever enters the signed payload; the cleartext stays on the
// issuing device.
func MetadataHash(metadata RecipientMetadata) string {
	data, _ := json.Marshal(metadata)
	return crypto.Keccak256Hex(data)
}
