package credential

import "time"

// RecipientMetadata is the cleartext metadata of a credential recipient. It is
// held only by the issuing device; the signed payload commits to its hash.
type RecipientMetadata struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// IssuedCredential is the issuer-side record: full recipient metadata plus the
// signed payload. Deleted locally only after its revocation transaction has
// been submitted.
type IssuedCredential struct {
	ID                    string            `json:"id"`
	LockID                int64             `json:"lock_id"`
	LockNickname          string            `json:"lock_nickname"`
	ValidFrom             time.Time         `json:"valid_from"`
	ValidUntil            *time.Time        `json:"valid_until,omitempty"` // nil = non-expiring
	Signature             string            `json:"signature"`
	SignedPayloadHash     string            `json:"signed_payload_hash"`
	RecipientMetadata     RecipientMetadata `json:"recipient_metadata"`
	RecipientMetadataHash string            `json:"recipient_metadata_hash"`
}

// AccessCredential is the holder-side record: everything needed to present
// the credential for verification, and nothing else. The holder never learns
// the cleartext metadata of other holders.
type AccessCredential struct {
	ID                    string     `json:"id"`
	LockID                int64      `json:"lock_id"`
	LockNickname          string     `json:"lock_nickname"`
	ValidFrom             time.Time  `json:"valid_from"`
	ValidUntil            *time.Time `json:"valid_until,omitempty"`
	Signature             string     `json:"signature"`
	SignedPayloadHash     string     `json:"signed_payload_hash"`
	RecipientMetadataHash string     `json:"recipient_metadata_hash"`
}

// AccessView strips an issued credential down to its holder-side shape.
func (c IssuedCredential) AccessView() AccessCredential {
	return AccessCredential{
		ID:                    c.ID,
		LockID:                c.LockID,
		LockNickname:          c.LockNickname,
		ValidFrom:             c.ValidFrom,
		ValidUntil:            c.ValidUntil,
		Signature:             c.Signature,
		SignedPayloadHash:     c.SignedPayloadHash,
		RecipientMetadataHash: c.RecipientMetadataHash,
	}
}

// TransferEnvelope is the short-lived wrapper used to move a credential
// between devices (QR payload). Its expiry is independent of the credential's
// own validity window: the transfer channel is lower-trust than the
// credential's intended lifetime.
type TransferEnvelope struct {
	Credential        AccessCredential `json:"credential"`
	TransferExpiresAt time.Time        `json:"transfer_expires_at"`
}
