package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "identities", `[{"local_id":1}]`))
	value, err := store.Get(ctx, "identities")
	require.NoError(t, err)
	assert.Equal(t, `[{"local_id":1}]`, value)

	require.NoError(t, store.Set(ctx, "identities", `[]`))
	value, err = store.Get(ctx, "identities")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	require.NoError(t, store.Remove(ctx, "identities"))
	_, err = store.Get(ctx, "identities")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Removing a missing key is not an error
	require.NoError(t, store.Remove(ctx, "identities"))
}
