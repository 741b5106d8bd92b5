package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchguard/go-lock-agent/internal/crypto"
)

func testKeyPair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestIssueProducesSelfContainedCredential(t *testing.T) {
	kp := testKeyPair(t)
	issuer := NewIssuer()

	until := time.Now().Add(time.Hour)
	cred, err := issuer.Issue(IssueRequest{
		LockID:            3,
		LockNickname:      "Front door",
		RecipientMetadata: RecipientMetadata{Email: "guest@example.com", DisplayName: "Guest"},
		IssuerPrivateKey:  kp.PrivateKey,
		IssuerPublicKey:   kp.PublicKey,
		ValidUntil:        &until,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, cred.ID)
	assert.Equal(t, int64(3), cred.LockID)
	assert.NotEmpty(t, cred.Signature)
	assert.NotEmpty(t, cred.SignedPayloadHash)
	assert.Equal(t, MetadataHash(cred.RecipientMetadata), cred.RecipientMetadataHash)

	// Offline verification: public key, payload fields and signature only
	ok, err := Verify(cred.AccessView(), kp.PublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIssueFailsWithInvalidKey(t *testing.T) {
	issuer := NewIssuer()
	_, err := issuer.Issue(IssueRequest{
		LockID:           1,
		IssuerPrivateKey: "0xzz",
	})
	assert.Error(t, err)
}

func TestHashContinuityBetweenIssuanceAndRevocation(t *testing.T) {
	kp := testKeyPair(t)
	issuer := NewIssuer()

	until := time.Now().Add(24 * time.Hour)
	for _, validUntil := range []*time.Time{nil, &until} {
		cred, err := issuer.Issue(IssueRequest{
			LockID:            9,
			RecipientMetadata: RecipientMetadata{Email: "guest@example.com"},
			IssuerPrivateKey:  kp.PrivateKey,
			IssuerPublicKey:   kp.PublicKey,
			ValidUntil:        validUntil,
		})
		require.NoError(t, err)

		// The hash recomputed at revocation time must match what was signed
		recomputed := ComputePayloadHash(cred.LockID, cred.RecipientMetadataHash, cred.ValidFrom, cred.ValidUntil)
		assert.Equal(t, cred.SignedPayloadHash, recomputed)
	}
}

func TestVerifyRejectsTamperedCredential(t *testing.T) {
	kp := testKeyPair(t)
	issuer := NewIssuer()

	cred, err := issuer.Issue(IssueRequest{
		LockID:            5,
		RecipientMetadata: RecipientMetadata{Email: "guest@example.com"},
		IssuerPrivateKey:  kp.PrivateKey,
		IssuerPublicKey:   kp.PublicKey,
	})
	require.NoError(t, err)

	tampered := cred.AccessView()
	tampered.LockID = 6
	ok, err := Verify(tampered, kp.PublicKey)
	require.NoError(t, err)
	assert.False(t, ok)

	otherKey := testKeyPair(t)
	ok, err = Verify(cred.AccessView(), otherKey.PublicKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetadataHashIsDeterministic(t *testing.T) {
	a := MetadataHash(RecipientMetadata{Email: "guest@example.com", DisplayName: "Guest"})
	b := MetadataHash(RecipientMetadata{Email: "guest@example.com", DisplayName: "Guest"})
	c := MetadataHash(RecipientMetadata{Email: "other@example.com", DisplayName: "Guest"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
