package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_inventory/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	productCache := NewRedisCache(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return productCache, mr, cleanup
}

func TestGet_Success(t *testing.T) {
	productCache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	product := &domain.Product{
		ID:        "p1",
		Name:      "Widget",
		CreatedAt: time.Now(),
	}

	productJSON, _ := json.Marshal(product)
	mr.Set(cacheKey(product.ID), string(productJSON))

	result, err := productCache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", result.ID)
	assert.Equal(t, "Widget", result.Name)
}

func TestGet_CacheMiss(t *testing.T) {
	productCache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := productCache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGet_CorruptedData(t *testing.T) {
	productCache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(cacheKey("p1"), "{not json")

	_, err := productCache.Get(context.Background(), "p1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_ThenGet(t *testing.T) {
	productCache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	product := &domain.Product{ID: "p1", Name: "Widget", CreatedAt: time.Now()}

	require.NoError(t, productCache.Set(ctx, product))
	assert.True(t, mr.Exists(cacheKey("p1")))

	result, err := productCache.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, product.Name, result.Name)
}

func TestSet_AppliesTTL(t *testing.T) {
	productCache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	product := &domain.Product{ID: "p1", Name: "Widget"}
	require.NoError(t, productCache.Set(context.Background(), product))

	ttl := mr.TTL(cacheKey("p1"))
	assert.GreaterOrEqual(t, ttl, productCache.baseTTL)
}

func TestDelete(t *testing.T) {
	productCache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	product := &domain.Product{ID: "p1", Name: "Widget"}
	require.NoError(t, productCache.Set(ctx, product))

	require.NoError(t, productCache.Delete(ctx, "p1"))
	assert.False(t, mr.Exists(cacheKey("p1")))
}
