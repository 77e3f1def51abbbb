package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/lpboost/internal/domain"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := domain.AppSession{
		ID:          "abc123",
		UserID:      "user-1",
		UserAddress: "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(domain.SessionTTL),
		Active:      true,
	}
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.True(t, got.Valid(time.Now()))
}

func TestMemoryStoreMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStoreLazyEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, domain.AppSession{
		ID:        "expired",
		ExpiresAt: time.Now().Add(-time.Minute),
		Active:    true,
	}))

	_, err := store.Get(ctx, "expired")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, store.Len(), "expired session evicted on access")
}

func TestMemoryStoreInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, domain.AppSession{
		ID:        "s1",
		ExpiresAt: time.Now().Add(time.Hour),
		Active:    true,
	}))
	require.NoError(t, store.Invalidate(ctx, "s1"))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, got.Valid(time.Now()), "invalidated session no longer authorizes")

	assert.ErrorIs(t, store.Invalidate(ctx, "missing"), domain.ErrNotFound)
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	for _, s := range []domain.AppSession{
		{ID: "live", ExpiresAt: now.Add(time.Hour), Active: true},
		{ID: "dead1", ExpiresAt: now.Add(-time.Hour), Active: true},
		{ID: "dead2", ExpiresAt: now.Add(-time.Minute), Active: true},
	} {
		require.NoError(t, store.Put(ctx, s))
	}

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len())
}
