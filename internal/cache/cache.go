// Package cache is a read-through Redis cache for availability
// responses. Entries are short-lived and invalidated on every
// reservation write for the affected date, so stale "available" answers
// stay within the TTL window at worst. The commit path never trusts the
// cache; the unique index in storage is the source of truth.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"igrovik/internal/metrics"
)

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a cache over an existing Redis client.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Key builds the cache key for one availability query. The resource
// bundle is part of the key because conflicts depend on it.
func Key(date string, consoleID int64, gameIDs, accessoryIDs []int64) string {
	return fmt.Sprintf("availability:%s:%d:%s:%s", date, consoleID, joinIDs(gameIDs), joinIDs(accessoryIDs))
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// Get returns the cached response body for key, or "" on miss. Redis
// errors degrade to a miss; availability must keep working without the
// cache.
func (c *Cache) Get(ctx context.Context, key string) string {
	if c == nil || c.rdb == nil {
		return ""
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		metrics.IncCacheLookup("miss")
		return ""
	}
	metrics.IncCacheLookup("hit")
	return val
}

// Set stores a response body under key for the configured TTL.
func (c *Cache) Set(ctx context.Context, key, body string) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Set(ctx, key, body, c.ttl).Err()
}

// InvalidateDate drops every cached availability answer for a date.
// Called after reservation create/cancel so freed or taken slots show up
// immediately.
func (c *Cache) InvalidateDate(ctx context.Context, date string) {
	if c == nil || c.rdb == nil {
		return
	}
	pattern := fmt.Sprintf("availability:%s:*", date)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = c.rdb.Del(ctx, iter.Val()).Err()
	}
}
