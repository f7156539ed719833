package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEphemeral(t *testing.T, cfg EphemeralConfig) (*EphemeralStore, *fakeClock) {
	t.Helper()

	store := NewEphemeralStore(cfg, testLogger())
	clock := newFakeClock()
	store.now = clock.Now
	return store, clock
}

func TestEphemeralStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestEphemeral(t, EphemeralConfig{MaxItems: 10, TTLSeconds: 60})

	require.True(t, store.Put(ctx, "key1", "value1"))
	assert.Equal(t, "value1", store.Get(ctx, "key1", nil))
	assert.True(t, store.Exists(ctx, "key1"))
}

func TestEphemeralStore_GetMissingReturnsDefault(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestEphemeral(t, EphemeralConfig{MaxItems: 10, TTLSeconds: 60})

	assert.Equal(t, "fallback", store.Get(ctx, "missing", "fallback"))
	assert.Nil(t, store.Get(ctx, "missing", nil))
}

func TestEphemeralStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestEphemeral(t, EphemeralConfig{MaxItems: 10, TTLSeconds: 60})

	store.Put(ctx, "key1", "value1")
	assert.True(t, store.Delete(ctx, "key1"))
	assert.False(t, store.Exists(ctx, "key1"))
	assert.False(t, store.Delete(ctx, "key1"))
}

func TestEphemeralStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestEphemeral(t, EphemeralConfig{MaxItems: 10, TTLSeconds: 60})

	store.Put(ctx, "key1", "value1")
	store.Put(ctx, "key2", "value2")

	require.True(t, store.Clear(ctx))
	assert.False(t, store.Exists(ctx, "key1"))
	assert.False(t, store.Exists(ctx, "key2"))
	assert.Empty(t, store.Keys(ctx))
}

func TestEphemeralStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestEphemeral(t, EphemeralConfig{MaxItems: 10, TTLSeconds: 60})

	store.Put(ctx, "key1", "value1")
	clock.Advance(61 * time.Second)

	assert.Equal(t, "fallback", store.Get(ctx, "key1", "fallback"))
	assert.False(t, store.Exists(ctx, "key1"))
	assert.Empty(t, store.Keys(ctx))
}

func TestEphemeralStore_ExpiryCheckedLazily(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestEphemeral(t, EphemeralConfig{MaxItems: 10, TTLSeconds: 60})

	store.Put(ctx, "old", "value")
	clock.Advance(61 * time.Second)

	// The expired entry is removed as a side effect of the lookup.
	assert.False(t, store.Exists(ctx, "old"))
	store.mu.Lock()
	_, stillThere := store.entries["old"]
	store.mu.Unlock()
	assert.False(t, stillThere)
}

func TestEphemeralStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestEphemeral(t, EphemeralConfig{MaxItems: 3, TTLSeconds: 3600})

	// Insertion order equals access order when nothing is read back.
	for i := 1; i <= 4; i++ {
		store.Put(ctx, fmt.Sprintf("key%d", i), i)
		clock.Advance(time.Second)
	}

	keys := store.Keys(ctx)
	assert.Len(t, keys, 3)
	assert.NotContains(t, keys, "key1")
	assert.ElementsMatch(t, []string{"key2", "key3", "key4"}, keys)
}

func TestEphemeralStore_AccessProtectsFromEviction(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestEphemeral(t, EphemeralConfig{MaxItems: 3, TTLSeconds: 3600})

	store.Put(ctx, "a", 1)
	clock.Advance(time.Second)
	store.Put(ctx, "b", 2)
	clock.Advance(time.Second)
	store.Put(ctx, "c", 3)
	clock.Advance(time.Second)

	// Touching "a" makes "b" the least recently accessed entry.
	store.Get(ctx, "a", nil)
	clock.Advance(time.Second)
	store.Put(ctx, "d", 4)

	keys := store.Keys(ctx)
	assert.ElementsMatch(t, []string{"a", "c", "d"}, keys)
}

func TestEphemeralStore_PutResetsAccessCount(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestEphemeral(t, EphemeralConfig{MaxItems: 10, TTLSeconds: 60})

	store.Put(ctx, "key1", "v1")
	store.Get(ctx, "key1", nil)
	store.Get(ctx, "key1", nil)
	store.Put(ctx, "key1", "v2")

	store.mu.Lock()
	e := store.entries["key1"]
	store.mu.Unlock()
	require.NotNil(t, e)
	assert.Equal(t, 0, e.accessCount)
	assert.Equal(t, "v2", e.value)
}

func TestEphemeralStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestEphemeral(t, EphemeralConfig{MaxItems: 1000, TTLSeconds: 3600})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j)
				store.Put(ctx, key, j)
				store.Get(ctx, key, nil)
				store.Exists(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(ctx), 500)
}
