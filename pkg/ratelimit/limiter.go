// Package ratelimit implements the sliding-window request counter backing
// the API-key rate limiter (C1), grounded on the original system's
// Redis-pipelined ZREMRANGEBYSCORE/ZCARD/ZADD/EXPIRE sequence.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter checks and reports sliding-window rate limits.
type Limiter interface {
	// Check atomically evicts expired entries, counts the remainder, and
	// — if under limit — admits the current request. Returns (false, 0)
	// both when denied and when the backing store is unreachable: the
	// limiter fails closed, never open.
	Check(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)

	// Remaining is the read-only variant: it evicts and counts but never
	// appends, so it does not consume budget.
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// RedisLimiter is a Limiter backed by a Redis sorted set per key, keyed by
// request timestamp scores.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter constructs a RedisLimiter against an already-configured
// client.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Check implements Limiter.
//
// Evict, count and append run inside a single MULTI/EXEC pipeline so
// concurrent callers cannot observe an intermediate state and race past
// the limit. A denied request's entry is removed again afterwards.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	member := fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond())
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit pipeline: %w", err)
	}

	current := int(countCmd.Val())
	if current >= limit {
		l.client.ZRem(ctx, key, member)
		return false, 0, nil
	}

	return true, limit - current - 1, nil
}

// Remaining implements Limiter.
func (l *RedisLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit remaining pipeline: %w", err)
	}

	current := int(countCmd.Val())
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// KeyForAPIKey builds the rate-limiter key for an API key id.
func KeyForAPIKey(apiKeyID string) string {
	return fmt.Sprintf("rate_limit:%s", apiKeyID)
}
