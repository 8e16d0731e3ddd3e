package dataverse_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerplatform-go/dataverse/pkg/dataverse"
)

func liveEntry(data string) *dataverse.CacheEntry {
	return &dataverse.CacheEntry{
		Data:      []byte(data),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func staleEntry(data string) *dataverse.CacheEntry {
	return &dataverse.CacheEntry{
		Data:      []byte(data),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
}

func TestCacheEntry_Expired(t *testing.T) {
	t.Parallel()

	assert.False(t, liveEntry("x").Expired())
	assert.True(t, staleEntry("x").Expired())

	// Zero expiry means the entry never expires.
	forever := &dataverse.CacheEntry{Data: []byte("x")}
	assert.False(t, forever.Expired())
}

func TestMemoryCache_SetGet(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(10)
	ctx := context.Background()

	err := cache.Set(ctx, "tableinfo:account", liveEntry("account-metadata"))
	require.NoError(t, err)

	entry, err := cache.Get(ctx, "tableinfo:account")
	require.NoError(t, err)
	assert.Equal(t, []byte("account-metadata"), entry.Data)
	assert.True(t, cache.Has(ctx, "tableinfo:account"))
}

func TestMemoryCache_GetMissing(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(10)

	_, err := cache.Get(context.Background(), "tableinfo:missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, dataverse.ErrCacheKeyNotFound)
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "stale", staleEntry("old")))

	_, err := cache.Get(ctx, "stale")
	require.Error(t, err)
	assert.ErrorIs(t, err, dataverse.ErrCacheEntryStale)

	// The expired entry is dropped on read.
	assert.False(t, cache.Has(ctx, "stale"))
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", liveEntry("value")))
	require.NoError(t, cache.Delete(ctx, "key"))

	assert.False(t, cache.Has(ctx, "key"))

	// Deleting a missing key is not an error.
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestMemoryCache_Clear(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", liveEntry("1")))
	require.NoError(t, cache.Set(ctx, "b", liveEntry("2")))
	require.NoError(t, cache.Clear(ctx))

	assert.False(t, cache.Has(ctx, "a"))
	assert.False(t, cache.Has(ctx, "b"))
}

func TestMemoryCache_EvictsClosestToExpiry(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(2)
	ctx := context.Background()

	soon := &dataverse.CacheEntry{Data: []byte("soon"), ExpiresAt: time.Now().Add(time.Minute)}
	later := &dataverse.CacheEntry{Data: []byte("later"), ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, cache.Set(ctx, "soon", soon))
	require.NoError(t, cache.Set(ctx, "later", later))
	require.NoError(t, cache.Set(ctx, "new", liveEntry("new")))

	assert.False(t, cache.Has(ctx, "soon"))
	assert.True(t, cache.Has(ctx, "later"))
	assert.True(t, cache.Has(ctx, "new"))
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", liveEntry("1")))
	require.NoError(t, cache.Set(ctx, "b", liveEntry("2")))
	require.NoError(t, cache.Set(ctx, "a", liveEntry("3")))

	assert.True(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))

	entry, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), entry.Data)
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "live", liveEntry("1")))
	require.NoError(t, cache.Set(ctx, "stale", staleEntry("2")))

	cache.Cleanup()

	assert.True(t, cache.Has(ctx, "live"))
	assert.False(t, cache.Has(ctx, "stale"))
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache := dataverse.NewMemoryCache(100)
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			key := fmt.Sprintf("key-%d", i)

			for range 50 {
				_ = cache.Set(ctx, key, liveEntry("value"))
				_, _ = cache.Get(ctx, key)
				_ = cache.Has(ctx, key)
			}
		}()
	}

	wg.Wait()
}
