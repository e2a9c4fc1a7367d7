package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per fixed window in Redis so that limits hold
// across Lambda instances.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

var _ RateLimiter = (*RedisRateLimiter)(nil)

// NewRedisRateLimiter creates a limiter allowing limit requests per window
func NewRedisRateLimiter(client redis.UniversalClient, limit int, window time.Duration, keyPrefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *RedisRateLimiter) windowKey(key string) string {
	start := r.now().Truncate(r.window)
	return fmt.Sprintf("ratelimit:%s:%s:%d", r.keyPrefix, key, start.Unix())
}

// Allow increments the counter of the current window. Redis errors fail open.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := r.windowKey(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, r.window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limiter error (failing open): %w", err)
	}

	return incr.Val() <= int64(r.limit), nil
}

// Reset clears the counter of the current window
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.windowKey(key)).Err()
}
