package roblox

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	ids   map[string]int64
	calls int
}

func (r *countingResolver) ResolveUsername(ctx context.Context, username string) (int64, error) {
	r.calls++
	if id, ok := r.ids[username]; ok {
		return id, nil
	}
	return 0, ErrUserNotFound
}

func newCacheFixture(t *testing.T) (*LookupCache, *countingResolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	inner := &countingResolver{ids: map[string]int64{"builderman": 156}}
	cache := NewLookupCache(inner, client, time.Hour, slog.Default())
	return cache, inner, mr
}

func TestLookupCacheHitSkipsInner(t *testing.T) {
	cache, inner, _ := newCacheFixture(t)
	ctx := context.Background()

	id, err := cache.ResolveUsername(ctx, "builderman")
	require.NoError(t, err)
	require.Equal(t, int64(156), id)
	require.Equal(t, 1, inner.calls)

	id, err = cache.ResolveUsername(ctx, "builderman")
	require.NoError(t, err)
	require.Equal(t, int64(156), id)
	require.Equal(t, 1, inner.calls)
}

func TestLookupCacheKeyIsCaseInsensitive(t *testing.T) {
	cache, inner, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.ResolveUsername(ctx, "builderman")
	require.NoError(t, err)

	inner.ids["BuilderMan"] = 156
	id, err := cache.ResolveUsername(ctx, "BuilderMan")
	require.NoError(t, err)
	require.Equal(t, int64(156), id)
	require.Equal(t, 1, inner.calls)
}

func TestLookupCacheExpiry(t *testing.T) {
	cache, inner, mr := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.ResolveUsername(ctx, "builderman")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = cache.ResolveUsername(ctx, "builderman")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestLookupCacheMissesAreNotCached(t *testing.T) {
	cache, inner, _ := newCacheFixture(t)
	ctx := context.Background()

	_, err := cache.ResolveUsername(ctx, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = cache.ResolveUsername(ctx, "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Equal(t, 2, inner.calls)
}

func TestLookupCacheDegradesWhenRedisDown(t *testing.T) {
	cache, inner, mr := newCacheFixture(t)
	mr.Close()
	ctx := context.Background()

	id, err := cache.ResolveUsername(ctx, "builderman")
	require.NoError(t, err)
	require.Equal(t, int64(156), id)
	require.Equal(t, 1, inner.calls)
}

func TestLookupCacheNilClientPassesThrough(t *testing.T) {
	inner := &countingResolver{ids: map[string]int64{"builderman": 156}}
	cache := NewLookupCache(inner, nil, time.Hour, slog.Default())

	id, err := cache.ResolveUsername(context.Background(), "builderman")
	require.NoError(t, err)
	require.Equal(t, int64(156), id)
	require.False(t, errors.Is(err, ErrUserNotFound))
}
