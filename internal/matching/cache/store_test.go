package cache

import (
	"context"
	"testing"
	"time"

	"marketplace_backend/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "test:")
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "req", []byte(`{"totalCount":2}`), 300*time.Second))
	assert.True(t, mr.Exists("test:req"))

	value, ok, err := store.Get(ctx, "req")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"totalCount":2}`, string(value))

	mr.FastForward(301 * time.Second)
	_, ok, err = store.Get(ctx, "req")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreReportsUnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	store := NewRedisStore(client, "")
	_, ok, err := store.Get(context.Background(), "req")
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	assert.False(t, ok)

	err = store.Set(context.Background(), "req", []byte("{}"), time.Minute)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}

func TestMemoryStoreHonoursTTL(t *testing.T) {
	store, err := NewMemoryStore(2)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))

	value, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), value)

	now = now.Add(time.Minute)
	_, ok, _ = store.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store, err := NewMemoryStore(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "c", []byte("3"), time.Hour))

	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "c")
	assert.True(t, ok)
}
