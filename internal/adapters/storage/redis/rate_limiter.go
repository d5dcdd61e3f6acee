package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter is a Redis implementation of the RateLimiterRepository port.
// It also counts events per key for the sale audit.
type FixedWindowLimiter struct {
	rdb    redis.Cmdable
	prefix string
}

func NewFixedWindowLimiter(rdb redis.Cmdable, prefix string) *FixedWindowLimiter {
	return &FixedWindowLimiter{rdb: rdb, prefix: prefix}
}

// Increment bumps the counter for key and starts its window on the first hit.
func (a *FixedWindowLimiter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := a.prefix + key

	// Atomically increment the counter for the given key.
	count, err := a.rdb.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis INCR failed: %w", err)
	}

	// If this is the first request in the window, set the expiration time.
	if count == 1 {
		if err := a.rdb.Expire(ctx, fullKey, window).Err(); err != nil {
			return 0, fmt.Errorf("redis EXPIRE failed: %w", err)
		}
	}
	return count, nil
}

// IsAllowed implements the rate limiting logic using a fixed-window algorithm in Redis.
func (a *FixedWindowLimiter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := a.Increment(ctx, key, window)
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}

// SlidingWindowLimiter counts requests in a sorted set scored by arrival time.
// It is stricter at window edges than FixedWindowLimiter and costs one set per key.
type SlidingWindowLimiter struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewSlidingWindowLimiter(rdb redis.Cmdable, prefix string) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{rdb: rdb, prefix: prefix, now: time.Now}
}

func (l *SlidingWindowLimiter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := l.prefix + key
	now := l.now().UnixNano()
	windowStart := now - window.Nanoseconds()

	pipe := l.rdb.TxPipeline()
	// 1. Delete all old entries (that have gone beyond the window)
	pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))
	// 2. Add the current request
	pipe.ZAdd(ctx, fullKey, redis.Z{Score: float64(now), Member: now})
	// 3. Count the number of requests in the window
	card := pipe.ZCard(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis sliding window failed: %w", err)
	}

	return card.Val() <= int64(limit), nil
}
