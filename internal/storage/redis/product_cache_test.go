package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProductCodecRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	product := domain.Product{
		ID:         "p-1",
		Name:       "Teapot",
		ImageURL:   "https://img.example/teapot.png",
		PriceMinor: 1999,
		Stock:      4,
		Version:    3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	raw, err := encodeProduct(product)
	require.NoError(t, err)
	decoded, err := decodeProduct(raw)
	require.NoError(t, err)
	require.Equal(t, product, decoded)

	_, err = decodeProduct([]byte(`{"name":"no id"}`))
	require.Error(t, err)
	require.Equal(t, "storefront:product:p-1", productKey("p-1"))
}

func TestProductCache_Redis(t *testing.T) {
	addr := os.Getenv("STOREFRONT_REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx := context.Background()
	rdb, err := Dial(ctx, addr, "", 0)
	if err != nil {
		t.Skipf("redis is not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewProductCache(rdb, time.Minute)
	id := "cache-test-" + time.Now().Format("150405.000000")

	_, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, domain.Product{ID: id, Name: "Cup", PriceMinor: 10}))
	got, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Cup", got.Name)

	require.NoError(t, cache.Invalidate(ctx, id))
	_, ok, err = cache.Get(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}
