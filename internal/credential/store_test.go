package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchguard/go-lock-agent/internal/storage"
)

func newTestStore(now time.Time) *Store {
	store := NewStore(storage.NewMemoryStore())
	store.now = func() time.Time { return now }
	return store
}

func issued(id string, lockID int64) IssuedCredential {
	return IssuedCredential{
		ID:                    id,
		LockID:                lockID,
		SignedPayloadHash:     "0xhash-" + id,
		RecipientMetadata:     RecipientMetadata{Email: "guest@example.com"},
		RecipientMetadataHash: "0xmeta",
	}
}

func TestIssuedAndAccessLedgersAreIndependent(t *testing.T) {
	store := newTestStore(time.Now())
	ctx := context.Background()

	require.NoError(t, store.PutIssued(ctx, issued("a", 1)))
	require.NoError(t, store.PutAccess(ctx, AccessCredential{ID: "b", LockID: 2}))

	issuedList, err := store.ListIssued(ctx, 0)
	require.NoError(t, err)
	accessList, err := store.ListAccess(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, issuedList, 1)
	assert.Len(t, accessList, 1)
	assert.Equal(t, "a", issuedList[0].ID)
	assert.Equal(t, "b", accessList[0].ID)

	// Deleting from one ledger never touches the other
	require.NoError(t, store.DeleteIssued(ctx, "a"))
	accessList, err = store.ListAccess(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, accessList, 1)
}

func TestPutIssuedUpsertsByID(t *testing.T) {
	store := newTestStore(time.Now())
	ctx := context.Background()

	require.NoError(t, store.PutIssued(ctx, issued("a", 1)))
	updated := issued("a", 1)
	updated.LockNickname = "Front door"
	require.NoError(t, store.PutIssued(ctx, updated))

	list, err := store.ListIssued(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Front door", list[0].LockNickname)
}

func TestListFiltersByLock(t *testing.T) {
	store := newTestStore(time.Now())
	ctx := context.Background()

	require.NoError(t, store.PutIssued(ctx, issued("a", 1)))
	require.NoError(t, store.PutIssued(ctx, issued("b", 2)))
	require.NoError(t, store.PutIssued(ctx, issued("c", 1)))

	list, err := store.ListIssued(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	all, err := store.ListIssued(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetAndDeleteIssued(t *testing.T) {
	store := newTestStore(time.Now())
	ctx := context.Background()

	require.NoError(t, store.PutIssued(ctx, issued("a", 1)))

	got, err := store.GetIssued(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LockID)

	_, err = store.GetIssued(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteIssued(ctx, "a"))
	assert.ErrorIs(t, store.DeleteIssued(ctx, "a"), ErrNotFound)
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(now)

	// Absent validUntil never expires
	assert.False(t, store.IsExpired(nil))

	future := now.Add(time.Minute)
	assert.False(t, store.IsExpired(&future))

	// Flips exactly at validUntil
	exact := now
	assert.True(t, store.IsExpired(&exact))

	past := now.Add(-time.Minute)
	assert.True(t, store.IsExpired(&past))
}

func TestIngestTransferHonoursEnvelopeExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	credentialValidUntil := now.Add(time.Hour)
	envelope := TransferEnvelope{
		Credential: AccessCredential{
			ID:         "cred-1",
			LockID:     1,
			ValidUntil: &credentialValidUntil,
		},
		TransferExpiresAt: now.Add(10 * time.Minute),
	}

	// Within the transfer window: accepted
	store := newTestStore(now.Add(5 * time.Minute))
	got, err := store.IngestTransfer(ctx, envelope)
	require.NoError(t, err)
	assert.Equal(t, "cred-1", got.ID)

	list, err := store.ListAccess(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// 11 minutes in: the envelope is stale even though the credential
	// itself is valid for another 49 minutes
	late := newTestStore(now.Add(11 * time.Minute))
	_, err = late.IngestTransfer(ctx, envelope)
	assert.ErrorIs(t, err, ErrTransferExpired)
	assert.False(t, late.IsExpired(envelope.Credential.ValidUntil))

	list, err = late.ListAccess(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
