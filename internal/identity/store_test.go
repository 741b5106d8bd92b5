package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchguard/go-lock-agent/internal/storage"
)

func newTestStore() *Store {
	store := NewStore(storage.NewMemoryStore())
	store.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return store
}

func TestCreateAssignsSequentialLocalIDs(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	first, err := store.Create(ctx, CreateRequest{Name: "Front door"})
	require.NoError(t, err)
	second, err := store.Create(ctx, CreateRequest{Name: "Garage"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.LocalID)
	assert.Equal(t, int64(2), second.LocalID)
	assert.Equal(t, StatusPending, first.Status)
	assert.NotEmpty(t, first.PublicKey)
	assert.NotEmpty(t, first.PrivateKey)
	assert.NotEqual(t, first.PublicKey, second.PublicKey)

	// Ids keep climbing past deletions
	require.NoError(t, store.Delete(ctx, 2))
	third, err := store.Create(ctx, CreateRequest{Name: "Back door"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), third.LocalID)
}

func TestGetAndList(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateRequest{Name: "Front door", Location: "Home"})
	require.NoError(t, err)

	got, err := store.Get(ctx, created.LocalID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Front door", got.Name)
	assert.Equal(t, "Home", got.Location)

	missing, err := store.Get(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateByPublicKey(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateRequest{Name: "Front door"})
	require.NoError(t, err)

	syncing := StatusSyncing
	updated, err := store.UpdateByPublicKey(ctx, created.PublicKey, Update{Status: &syncing})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, StatusSyncing, updated.Status)

	chainID := int64(42)
	active := StatusActive
	updated, err = store.UpdateByPublicKey(ctx, created.PublicKey, Update{ChainID: &chainID, Status: &active})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, StatusActive, updated.Status)
	assert.Equal(t, int64(42), updated.ChainID)

	// Persisted, not just returned
	got, err := store.Get(ctx, created.LocalID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, int64(42), got.ChainID)
}

func TestUpdateByPublicKeyMissingIsNotAnError(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	syncing := StatusSyncing
	updated, err := store.UpdateByPublicKey(ctx, "0xdeadbeef", Update{Status: &syncing})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestInvalidStatusTransitionRejected(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	// pending -> active skips syncing
	active := StatusActive
	_, err = store.UpdateByPublicKey(ctx, created.PublicKey, Update{Status: &active})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusSyncing, true},
		{StatusPending, StatusActive, false},
		{StatusPending, StatusFailed, false},
		{StatusSyncing, StatusActive, true},
		{StatusSyncing, StatusFailed, true},
		{StatusSyncing, StatusSyncing, true},
		{StatusFailed, StatusSyncing, true},
		{StatusFailed, StatusActive, true}, // late ledger confirmation
		{StatusActive, StatusSyncing, false},
		{StatusActive, StatusFailed, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	created, err := store.Create(ctx, CreateRequest{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.LocalID))
	assert.ErrorIs(t, store.Delete(ctx, created.LocalID), ErrNotFound)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
