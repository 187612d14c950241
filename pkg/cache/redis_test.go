package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return store, mr
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	err := store.Set(ctx, "clusters_list", []byte(`{"clusters":[{"cluster_id":"a"}]}`), time.Hour)
	require.NoError(t, err)

	data, ok, err := store.Get(ctx, "clusters_list")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"clusters":[{"cluster_id":"a"}]}`, string(data))
}

func TestRedisStore_GetMiss(t *testing.T) {
	store, _ := setupTestRedis(t)

	_, ok, err := store.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Expiration(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	err := store.Set(ctx, "key", []byte("v"), 100*time.Millisecond)
	require.NoError(t, err)

	mr.FastForward(150 * time.Millisecond)

	_, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", []byte("v"), time.Hour))
	require.NoError(t, store.Delete(ctx, "key"))

	_, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "spark_versions", []byte("v"), 0))
	assert.True(t, mr.Exists("dbxmaint:spark_versions"))
}
