package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter limits OTP requests per email using Redis INCR + EXPIRE
// (fixed-window token bucket), per spec.md §4.3's OTP-request throttling.
type RateLimiter struct {
	redis      *redis.Client
	keyPrefix  string
	maxAttempt int
	window     time.Duration
}

func NewRateLimiter(rdb *redis.Client, keyPrefix string, maxAttempt int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: rdb, keyPrefix: keyPrefix, maxAttempt: maxAttempt, window: window}
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

func (rl *RateLimiter) key(subject string) string {
	return fmt.Sprintf("%s:%s", rl.keyPrefix, subject)
}

// Check reports whether subject (an email address) may make another request.
func (rl *RateLimiter) Check(ctx context.Context, subject string) (*RateLimitResult, error) {
	key := rl.key(subject)

	count, err := rl.redis.Get(ctx, key).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}

	if count >= rl.maxAttempt {
		ttl, err := rl.redis.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("getting ttl: %w", err)
		}
		return &RateLimitResult{Allowed: false, Remaining: 0, RetryAt: time.Now().Add(ttl)}, nil
	}

	return &RateLimitResult{Allowed: true, Remaining: rl.maxAttempt - count}, nil
}

// Record records a request against subject's window.
func (rl *RateLimiter) Record(ctx context.Context, subject string) error {
	key := rl.key(subject)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording rate limit: %w", err)
	}

	if incr.Val() == 1 {
		if err := rl.redis.Expire(ctx, key, rl.window).Err(); err != nil {
			return fmt.Errorf("setting rate limit expiry: %w", err)
		}
	}
	return nil
}

func (rl *RateLimiter) Reset(ctx context.Context, subject string) error {
	return rl.redis.Del(ctx, rl.key(subject)).Err()
}
