package credentials

import (
	"time"

	"github.com/latchguard/go-lock-agent/internal/credential"
)

type issuedCredentialResponse struct {
	ID                    string                       `json:"id"`
	LockID                int64                        `json:"lock_id"`
	LockNickname          string                       `json:"lock_nickname,omitempty"`
	ValidFrom             time.Time                    `json:"valid_from"`
	ValidUntil            *time.Time                   `json:"valid_until,omitempty"`
	Signature             string                       `json:"signature"`
	SignedPayloadHash     string                       `json:"signed_payload_hash"`
	RecipientMetadata     credential.RecipientMetadata `json:"recipient_metadata"`
	RecipientMetadataHash string                       `json:"recipient_metadata_hash"`
	Expired               bool                         `json:"expired"`
}

type accessCredentialResponse struct {
	ID                    string     `json:"id"`
	LockID                int64      `json:"lock_id"`
	LockNickname          string     `json:"lock_nickname,omitempty"`
	ValidFrom             time.Time  `json:"valid_from"`
	ValidUntil            *time.Time `json:"valid_until,omitempty"`
	Signature             string     `json:"signature"`
	SignedPayloadHash     string     `json:"signed_payload_hash"`
	RecipientMetadataHash string     `json:"recipient_metadata_hash"`
	Expired               bool       `json:"expired"`
}

func toIssuedResponse(cred credential.IssuedCredential, expired bool) issuedCredentialResponse {
	return issuedCredentialResponse{
		ID:                    cred.ID,
		LockID:                cred.LockID,
		LockNickname:          cred.LockNickname,
		ValidFrom:             cred.ValidFrom,
		ValidUntil:            cred.ValidUntil,
		Signature:             cred.Signature,
		SignedPayloadHash:     cred.SignedPayloadHash,
		RecipientMetadata:     cred.RecipientMetadata,
		RecipientMetadataHash: cred.RecipientMetadataHash,
		Expired:               expired,
	}
}

func toAccessResponse(cred credential.AccessCredential, expired bool) accessCredentialResponse {
	return accessCredentialResponse{
		ID:                    cred.ID,
		LockID:                cred.LockID,
		LockNickname:          cred.LockNickname,
		ValidFrom:             cred.ValidFrom,
		ValidUntil:            cred.ValidUntil,
		Signature:             cred.Signature,
		SignedPayloadHash:     cred.SignedPayloadHash,
		RecipientMetadataHash: cred.RecipientMetadataHash,
		Expired:               expired,
	}
}
