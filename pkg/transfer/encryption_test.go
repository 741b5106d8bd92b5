package transfer

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchguard/go-lock-agent/internal/credential"
	"github.com/latchguard/go-lock-agent/internal/crypto"
)

func testEnvelope() credential.TransferEnvelope {
	until := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return credential.TransferEnvelope{
		Credential: credential.AccessCredential{
			ID:                    "cred-1",
			LockID:                3,
			LockNickname:          "Front door",
			Signature:             "0xsig",
			SignedPayloadHash:     "0xhash",
			RecipientMetadataHash: "0xmeta",
			ValidFrom:             until.Add(-time.Hour),
		},
		TransferExpiresAt: until,
	}
}

func TestSealAndOpenEnvelope(t *testing.T) {
	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	envelope := testEnvelope()
	sealed, err := SealEnvelope(envelope, recipient.PublicKey)
	require.NoError(t, err)
	assert.NotEmpty(t, sealed)

	opened, err := OpenEnvelope(sealed, recipient.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, envelope.Credential.ID, opened.Credential.ID)
	assert.Equal(t, envelope.Credential.LockID, opened.Credential.LockID)
	assert.True(t, envelope.TransferExpiresAt.Equal(opened.TransferExpiresAt))
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	alice, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	sealed, err := SealEnvelope(testEnvelope(), alice.PublicKey)
	require.NoError(t, err)

	_, err = OpenEnvelope(sealed, bob.PrivateKey)
	assert.Error(t, err)
}

func TestOpenTamperedEnvelopeFails(t *testing.T) {
	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	sealed, err := SealEnvelope(testEnvelope(), recipient.PublicKey)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF

	_, err = OpenEnvelope(base64.StdEncoding.EncodeToString(raw), recipient.PrivateKey)
	assert.Error(t, err)
}

func TestSealRejectsInvalidPublicKey(t *testing.T) {
	_, err := SealEnvelope(testEnvelope(), "0xzz")
	assert.Error(t, err)

	_, err = SealEnvelope(testEnvelope(), "0x0102")
	assert.Error(t, err)
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	recipient, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = OpenEnvelope(short, recipient.PrivateKey)
	assert.Error(t, err)
}
