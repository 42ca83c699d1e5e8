package roblox

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Resolver maps a username to an account id.
type Resolver interface {
	ResolveUsername(ctx context.Context, username string) (int64, error)
}

// LookupCache caches username resolution in Redis. Usernames map to ids
// stably enough for a short TTL; bios and group roles are never cached
// because verification and sync need fresh reads.
type LookupCache struct {
	inner  Resolver
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLookupCache constructs a LookupCache.
func NewLookupCache(inner Resolver, client *redis.Client, ttl time.Duration, logger *slog.Logger) *LookupCache {
	return &LookupCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

// ResolveUsername serves from cache when possible; cache trouble degrades
// to a direct call rather than failing the lookup.
func (c *LookupCache) ResolveUsername(ctx context.Context, username string) (int64, error) {
	key := cacheKey(username)
	if c.client != nil {
		cached, err := c.client.Get(ctx, key).Result()
		if err == nil {
			if id, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				return id, nil
			}
		} else if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("roblox lookup cache get", slog.Any("error", err))
		}
	}
	id, err := c.inner.ResolveUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, strconv.FormatInt(id, 10), c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Warn("roblox lookup cache set", slog.Any("error", err))
		}
	}
	return id, nil
}

func cacheKey(username string) string {
	return "roblox:lookup:" + strings.ToLower(username)
}

// CachedAPI overlays the lookup cache on a direct client. Bio and group
// role reads pass straight through.
type CachedAPI struct {
	*Client
	lookups *LookupCache
}

// NewCachedAPI constructs a CachedAPI.
func NewCachedAPI(client *Client, redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedAPI {
	return &CachedAPI{Client: client, lookups: NewLookupCache(client, redisClient, ttl, logger)}
}

// ResolveUsername serves username resolution through the cache.
func (a *CachedAPI) ResolveUsername(ctx context.Context, username string) (int64, error) {
	return a.lookups.ResolveUsername(ctx, username)
}
