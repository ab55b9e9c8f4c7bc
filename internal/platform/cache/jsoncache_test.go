package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type levelRow struct {
	ProductID int64   `json:"product_id"`
	Stock     float64 `json:"stock"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*JSONCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSONCache(client, ttl), mr
}

func TestFetchPopulatesAndReuses(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []levelRow{{ProductID: 7, Stock: 12.5}}, nil
	}

	var first []levelRow
	require.NoError(t, cache.Fetch(ctx, "stock:levels", &first, loader))
	require.Len(t, first, 1)
	require.Equal(t, int64(7), first[0].ProductID)

	var second []levelRow
	require.NoError(t, cache.Fetch(ctx, "stock:levels", &second, loader))
	require.Equal(t, first, second)
	require.Equal(t, 1, calls, "second fetch must come from redis")
}

func TestFetchExpiresWithTTL(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return levelRow{ProductID: 1, Stock: float64(calls)}, nil
	}

	var row levelRow
	require.NoError(t, cache.Fetch(ctx, "stock:levels", &row, loader))
	require.Equal(t, 1.0, row.Stock)

	mr.FastForward(2 * time.Minute)

	require.NoError(t, cache.Fetch(ctx, "stock:levels", &row, loader))
	require.Equal(t, 2.0, row.Stock)
	require.Equal(t, 2, calls)
}

func TestFetchLoaderErrorIsNotCached(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	boom := errors.New("db down")
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return levelRow{ProductID: 3}, nil
	}

	var row levelRow
	require.ErrorIs(t, cache.Fetch(ctx, "k", &row, loader), boom)
	require.NoError(t, cache.Fetch(ctx, "k", &row, loader))
	require.Equal(t, int64(3), row.ProductID)
}

func TestInvalidateForcesReload(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return levelRow{ProductID: 9, Stock: float64(calls)}, nil
	}

	var row levelRow
	require.NoError(t, cache.Fetch(ctx, "k", &row, loader))
	require.NoError(t, cache.Invalidate(ctx, "k"))
	require.NoError(t, cache.Fetch(ctx, "k", &row, loader))
	require.Equal(t, 2, calls)
}

func TestNilClientFallsThroughToLoader(t *testing.T) {
	cache := NewJSONCache(nil, time.Minute)

	var row levelRow
	err := cache.Fetch(context.Background(), "k", &row, func(context.Context) (any, error) {
		return levelRow{ProductID: 4, Stock: 1}, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), row.ProductID)
}
