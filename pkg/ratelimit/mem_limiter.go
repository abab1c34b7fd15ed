package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemLimiter is an in-process Limiter implementing the same sliding-window
// algorithm as RedisLimiter, guarded by a single mutex instead of a Redis
// pipeline. Useful for local development and as a fast, dependency-free
// test double that still exercises the real evict/count/admit contract.
type MemLimiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemLimiter constructs an empty MemLimiter.
func NewMemLimiter() *MemLimiter {
	return &MemLimiter{entries: make(map[string][]time.Time)}
}

// Check implements Limiter.
func (l *MemLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	kept := evict(l.entries[key], now, window)

	if len(kept) >= limit {
		l.entries[key] = kept
		return false, 0, nil
	}

	kept = append(kept, now)
	l.entries[key] = kept
	return true, limit - len(kept), nil
}

// Remaining implements Limiter.
func (l *MemLimiter) Remaining(_ context.Context, key string, limit int, window time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	kept := evict(l.entries[key], now, window)
	l.entries[key] = kept

	remaining := limit - len(kept)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func evict(entries []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := entries[:0:0]
	for _, t := range entries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
