package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window request budget per (subject, bucket)
// using Redis INCR+EXPIRE, the same get-or-set-then-mutate shape the
// dedup repository uses for its SETEX check.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// StandardLimit is the general 100 requests/minute budget; AIActionLimit
// (10/minute) applies to draft generation, since each call proxies to the
// Anthropic API. Among the API handlers only POST /api/v1/draft/{id} calls
// Allow; the other endpoints, send included, are not rate-limited.
const (
	StandardLimit = 100
	AIActionLimit = 10
	windowTTL     = time.Minute
)

// Allow increments the window counter for (subject, bucket) and reports
// whether the request is within limit. The very first increment in a
// window also sets the TTL, so the window resets exactly once per minute
// rather than sliding on every request.
func (r *RateLimiter) Allow(ctx context.Context, subject, bucket string, limit int) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", bucket, subject)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, windowTTL).Err(); err != nil {
			return false, fmt.Errorf("cache: rate limit expire: %w", err)
		}
	}

	return count <= int64(limit), nil
}
