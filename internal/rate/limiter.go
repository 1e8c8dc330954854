package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when the attempt budget for a window is
	// exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter enforces a per-key failed-attempt budget using Redis counters.
// A Limiter constructed with a nil client permits everything, so flows can
// hold one unconditionally.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a [Limiter] with the given key prefix, for example "2fa" or
// "tok".
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func (l *Limiter) key(id string) string {
	return l.prefix + ":" + id
}

// Check reports whether id is still within its attempt budget. Returns
// ErrRateLimited once the budget is exhausted.
func (l *Limiter) Check(ctx context.Context, id string) error {
	if l == nil || l.redis == nil {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts a failed attempt for id. Returns ErrRateLimited when
// the failure exhausts the budget.
func (l *Limiter) RecordFailure(ctx context.Context, id string) error {
	if l == nil || l.redis == nil {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(id), l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for id. Called after a successful verification.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RetryAfter returns the remaining cooldown for id. Zero means the window
// has no deadline or the key is gone.
func (l *Limiter) RetryAfter(ctx context.Context, id string) time.Duration {
	if l == nil || l.redis == nil {
		return 0
	}
	ttl, err := l.redis.TTL(ctx, l.key(id)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
