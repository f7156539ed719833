package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisEphemeralStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisEphemeralStore(EphemeralConfig{
		Backend:    BackendRedis,
		TTLSeconds: 60,
		RedisURL:   "redis://" + mr.Addr(),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisEphemeralStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)

	require.True(t, store.Put(ctx, "key1", "value1"))
	assert.Equal(t, "value1", store.Get(ctx, "key1", nil))
	assert.True(t, store.Exists(ctx, "key1"))
	assert.Equal(t, "fallback", store.Get(ctx, "missing", "fallback"))
}

func TestRedisEphemeralStore_StructuredValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)

	payload := map[string]any{"campaign": "spring", "score": 0.93}
	require.True(t, store.Put(ctx, "key1", payload))
	assert.Equal(t, payload, store.Get(ctx, "key1", nil))
}

func TestRedisEphemeralStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t)

	store.Put(ctx, "key1", "value1")
	mr.FastForward(61 * time.Second)

	assert.False(t, store.Exists(ctx, "key1"))
	assert.Equal(t, "fallback", store.Get(ctx, "key1", "fallback"))
}

func TestRedisEphemeralStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)

	store.Put(ctx, "key1", "value1")
	assert.True(t, store.Delete(ctx, "key1"))
	assert.False(t, store.Delete(ctx, "key1"))
	assert.False(t, store.Exists(ctx, "key1"))
}

func TestRedisEphemeralStore_Keys(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)

	store.Put(ctx, "key1", 1)
	store.Put(ctx, "key2", 2)

	assert.ElementsMatch(t, []string{"key1", "key2"}, store.Keys(ctx))
}

func TestRedisEphemeralStore_ClearLeavesUnrelatedKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t)

	store.Put(ctx, "key1", 1)
	store.Put(ctx, "key2", 2)
	require.NoError(t, mr.Set("someone_elses_key", "untouched"))

	require.True(t, store.Clear(ctx))
	assert.Empty(t, store.Keys(ctx))

	got, err := mr.Get("someone_elses_key")
	require.NoError(t, err)
	assert.Equal(t, "untouched", got)
}

func TestRedisEphemeralStore_UnencodableValue(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t)

	assert.False(t, store.Put(ctx, "bad", make(chan int)))
	assert.False(t, store.Exists(ctx, "bad"))
}

func TestNewRedisEphemeralStore_InvalidURL(t *testing.T) {
	_, err := NewRedisEphemeralStore(EphemeralConfig{
		Backend:    BackendRedis,
		TTLSeconds: 60,
		RedisURL:   "not-a-redis-url://%%",
	}, testLogger())
	require.Error(t, err)
}

func TestNewRedisEphemeralStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisEphemeralStore(EphemeralConfig{
		Backend:    BackendRedis,
		TTLSeconds: 60,
		RedisURL:   "redis://" + addr,
	}, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
