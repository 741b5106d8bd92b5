package revocation

import (
	"context"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/crypto"
	"github.com/latchguard/go-lock-agent/internal/ledger"
)

var (
	ErrNotConnected     = errors.New("no ledger write capability connected")
	ErrSubmissionFailed = errors.New("revocation submission failed")
	ErrHashMismatch     = errors.New("recomputed payload hash differs from signed payload hash")
	ErrWrongIssuer      = errors.New("signing key does not recover to issuer address")
)

// CredentialStore is the slice of the credential store the coordinator needs.
type CredentialStore interface {
	GetIssued(ctx context.Context, id string) (*credential.IssuedCredential, error)
	DeleteIssued(ctx context.Context, id string) error
}

// Coordinator converts issued credentials into on-chain revocation proofs.
// The local record is deleted only after the revocation transaction has been
// submitted; a failed submission retains the credential and the operation is
// user-retryable.
type Coordinator struct {
	credentials CredentialStore
	writer      ledger.Writer
}

// NewCoordinator creates a revocation coordinator. writer may be nil when no
// wallet is connected.
func NewCoordinator(credentials CredentialStore, writer ledger.Writer) *Coordinator {
	return &Coordinator{credentials: credentials, writer: writer}
}

// Revoke re-derives the revocation proof for an issued credential and submits
// it. The proof commits to the exact payload hash computed at issuance; the
// ledger matches the credential by that hash, so the recomputation is checked
// before anything is sent.
func (c *Coordinator) Revoke(ctx context.Context, credentialID, issuerPrivateKey, issuerAddress string) error {
	if c.writer == nil {
		return ErrNotConnected
	}

	cred, err := c.credentials.GetIssued(ctx, credentialID)
	if err != nil {
		return err
	}

	payloadHash, signature, err := c.prove(cred, issuerPrivateKey, issuerAddress)
	if err != nil {
		return err
	}

	hash32, err := ledger.Bytes32FromHex(payloadHash)
	if err != nil {
		return errors.Wrap(err, "invalid payload hash")
	}
	sigBytes, err := ledger.BytesFromHex(signature)
	if err != nil {
		return errors.Wrap(err, "invalid chain signature")
	}

	if _, err := c.writer.Submit(ctx, "revokeCredential", big.NewInt(cred.LockID), hash32, sigBytes); err != nil {
		log.Error().Err(err).Str("credential_id", credentialID).Msg("Revocation submission rejected, credential retained")
		return errors.Wrapf(ErrSubmissionFailed, "submit revokeCredential: %v", err)
	}

	if err := c.credentials.DeleteIssued(ctx, credentialID); err != nil {
		return errors.Wrap(err, "failed to delete revoked credential")
	}

	log.Info().
		Str("credential_id", credentialID).
		Int64("lock_id", cred.LockID).
		Str("payload_hash", payloadHash).
		Msg("Credential revoked and removed locally")

	return nil
}

// RevokeMany revokes a list of credentials of one lock in a single batch
// transaction. The ledger accepts or rejects the batch as a whole; local
// deletion happens only after the whole batch has been submitted.
func (c *Coordinator) RevokeMany(ctx context.Context, lockID int64, credentialIDs []string, issuerPrivateKey, issuerAddress string) error {
	if c.writer == nil {
		return ErrNotConnected
	}
	if len(credentialIDs) == 0 {
		return errors.New("no credentials to revoke")
	}

	hashes := make([][32]byte, 0, len(credentialIDs))
	signatures := make([][]byte, 0, len(credentialIDs))
	for _, id := range credentialIDs {
		cred, err := c.credentials.GetIssued(ctx, id)
		if err != nil {
			return err
		}
		if cred.LockID != lockID {
			return errors.Errorf("credential %s belongs to lock %d, not %d", id, cred.LockID, lockID)
		}

		payloadHash, signature, err := c.prove(cred, issuerPrivateKey, issuerAddress)
		if err != nil {
			return err
		}
		hash32, err := ledger.Bytes32FromHex(payloadHash)
		if err != nil {
			return errors.Wrap(err, "invalid payload hash")
		}
		sigBytes, err := ledger.BytesFromHex(signature)
		if err != nil {
			return errors.Wrap(err, "invalid chain signature")
		}
		hashes = append(hashes, hash32)
		signatures = append(signatures, sigBytes)
	}

	if _, err := c.writer.Submit(ctx, "revokeCredentialBatch", big.NewInt(lockID), hashes, signatures); err != nil {
		log.Error().Err(err).Int64("lock_id", lockID).Int("count", len(credentialIDs)).Msg("Batch revocation submission rejected, credentials retained")
		return errors.Wrapf(ErrSubmissionFailed, "submit revokeCredentialBatch: %v", err)
	}

	for _, id := range credentialIDs {
		if err := c.credentials.DeleteIssued(ctx, id); err != nil {
			log.Error().Err(err).Str("credential_id", id).Msg("Failed to delete revoked credential")
		}
	}

	log.Info().
		Int64("lock_id", lockID).
		Int("count", len(credentialIDs)).
		Msg("Credential batch revoked and removed locally")

	return nil
}

// prove recomputes the committed payload hash and produces the
// address-recoverable signature the ledger verifies. The hash must reproduce
// the one computed at issuance exactly; only the signature encoding differs
// between the off-chain and on-chain presentations.
func (c *Coordinator) prove(cred *credential.IssuedCredential, issuerPrivateKey, issuerAddress string) (string, string, error) {
	payloadHash := credential.ComputePayloadHash(cred.LockID, cred.RecipientMetadataHash, cred.ValidFrom, cred.ValidUntil)
	if payloadHash != cred.SignedPayloadHash {
		return "", "", errors.Wrapf(ErrHashMismatch, "credential %s", cred.ID)
	}

	signature, err := crypto.SignForChain(payloadHash, issuerPrivateKey)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to sign revocation proof")
	}

	recovered, err := crypto.RecoverAddress(payloadHash, signature)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to recover signer address")
	}
	if !strings.EqualFold(recovered, issuerAddress) {
		return "", "", errors.Wrapf(ErrWrongIssuer, "recovered %s, expected %s", recovered, issuerAddress)
	}

	return payloadHash, signature, nil
}
