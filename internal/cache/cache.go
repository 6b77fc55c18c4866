// Package cache wraps Redis for the feed/thread/contact/sync TTL caches
// and the per-endpoint rate limiter.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed TTLs per cached resource.
const (
	FeedTTL    = 30 * time.Second
	ThreadTTL  = 5 * time.Minute
	ContactTTL = time.Hour
	SyncTTL    = 24 * time.Hour
)

// Cache wraps a Redis client with namespaced get/set helpers. Rate
// limiting lives in the separate RateLimiter type.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func feedKey(userID string) string    { return fmt.Sprintf("cache:feed:%s", userID) }
func threadKey(userID, platform, threadID string) string {
	return fmt.Sprintf("cache:thread:%s:%s:%s", userID, platform, threadID)
}
func contactKey(userID, platform, identifier string) string {
	return fmt.Sprintf("cache:contact:%s:%s:%s", userID, platform, identifier)
}
func syncKey(userID, platform string) string {
	return fmt.Sprintf("cache:sync:%s:%s", userID, platform)
}

// GetJSON fetches and unmarshals a cached value. It reports (false, nil)
// on a cache miss, never an error — callers always fall through to the
// store on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals and stores a value with the given TTL. A write failure
// is logged, not returned, since a cache-set failure must never fail the
// request it is backing.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Error("cache: encode value", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		slog.Error("cache: set value", "key", key, "error", err)
	}
}

// Invalidate deletes a cached value, used whenever a write makes a cached
// read stale (e.g. a feed mutation invalidating cache:feed:{user}).
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Error("cache: invalidate", "key", key, "error", err)
	}
}

// Ping reports whether the Redis connection is reachable. A nil client
// (caching disabled) reports healthy rather than erroring.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping: %w", err)
	}
	return nil
}

func (c *Cache) FeedKey(userID string) string { return feedKey(userID) }
func (c *Cache) ThreadKey(userID string, platform, threadID string) string {
	return threadKey(userID, platform, threadID)
}
func (c *Cache) ContactKey(userID, platform, identifier string) string {
	return contactKey(userID, platform, identifier)
}
func (c *Cache) SyncKey(userID, platform string) string { return syncKey(userID, platform) }
