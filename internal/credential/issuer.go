package credential

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/crypto"
)

var ErrSigningFailed = errors.New("credential signing returned incomplete result")

// IssueRequest carries everything needed to mint a credential for a lock the
// device owns.
type IssueRequest struct {
	LockID            int64
	LockNickname      string
	RecipientMetadata RecipientMetadata
	IssuerPrivateKey  string
	IssuerPublicKey   string
	ValidUntil        *time.Time // nil = non-expiring
}

// Issuer mints privacy-preserving verifiable credentials. The resulting
// credential is self-contained: verification needs only the issuer's public
// key, the payload fields and the signature, no network access.
type Issuer struct {
	now func() time.Time
}

// NewIssuer creates a credential issuer.
func NewIssuer() *Issuer {
	return &Issuer{now: time.Now}
}

// Issue builds and signs a credential bound to the lock identity and the
// recipient's hashed metadata.
func (i *Issuer) Issue(req IssueRequest) (*IssuedCredential, error) {
	metadataHash := MetadataHash(req.RecipientMetadata)
	validFrom := i.now()

	payload := PayloadBytes(req.LockID, metadataHash, validFrom, req.ValidUntil)
	signature, payloadHash, err := crypto.Sign(payload, req.IssuerPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign credential payload")
	}
	if signature == "" || payloadHash == "" {
		return nil, ErrSigningFailed
	}

	cred := &IssuedCredential{
		ID:                    "cred-" + uuid.New().String(),
		LockID:                req.LockID,
		LockNickname:          req.LockNickname,
		ValidFrom:             validFrom,
		ValidUntil:            req.ValidUntil,
		Signature:             signature,
		SignedPayloadHash:     payloadHash,
		RecipientMetadata:     req.RecipientMetadata,
		RecipientMetadataHash: metadataHash,
	}

	log.Info().
		Str("credential_id", cred.ID).
		Int64("lock_id", cred.LockID).
		Str("payload_hash", cred.SignedPayloadHash).
		Msg("Issued credential")

	return cred, nil
}

// Verify checks an access credential offline against the issuer's public key:
// the payload hash must recompute from the credential's own fields and the
// signature must verify against that hash.
func Verify(cred AccessCredential, issuerPublicKey string) (bool, error) {
	recomputed := ComputePayloadHash(cred.LockID, cred.RecipientMetadataHash, cred.ValidFrom, cred.ValidUntil)
	if recomputed != cred.SignedPayloadHash {
		return false, nil
	}
	return crypto.Verify(cred.SignedPayloadHash, cred.Signature, issuerPublicKey)
}
