package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-bank/meridian/internal/shared"
)

// attemptLimiter counts attempts per key in Redis with a rolling TTL window.
type attemptLimiter struct {
	client *redis.Client
	window time.Duration
}

func newAttemptLimiter(client *redis.Client, window time.Duration) *attemptLimiter {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &attemptLimiter{client: client, window: window}
}

// hit records one attempt and fails with ErrRateLimited past max.
func (l *attemptLimiter) hit(ctx context.Context, key string, max int64) error {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return err
		}
	}
	if count > max {
		return fmt.Errorf("auth: %s: %w", key, shared.ErrRateLimited)
	}
	return nil
}

// reset clears the counter after a successful attempt.
func (l *attemptLimiter) reset(ctx context.Context, key string) {
	_ = l.client.Del(ctx, key).Err()
}
