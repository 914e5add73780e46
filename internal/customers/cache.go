package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProfileCache keeps customer profiles in Redis for a short TTL. Invalidation
// happens strictly after a ledger commit, never before, so a stale "success"
// state is never exposed.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewProfileCache constructs a cache. ttl zero defaults to two minutes.
func NewProfileCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ProfileCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileCache{client: client, ttl: ttl, logger: logger}
}

func profileKey(userID int64) string {
	return fmt.Sprintf("customer:profile:%d", userID)
}

// Get returns the cached profile, or nil on miss. Cache failures count as
// misses.
func (c *ProfileCache) Get(ctx context.Context, userID int64) *Profile {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("profile cache get", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return &p
}

// Set stores the profile for the configured TTL.
func (c *ProfileCache) Set(ctx context.Context, p *Profile) {
	if c == nil || c.client == nil || p == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKey(p.UserID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache set", slog.Int64("user_id", p.UserID), slog.Any("error", err))
	}
}

// InvalidateProfile drops the cached profile. It satisfies the ledger's
// post-commit Invalidator hook.
func (c *ProfileCache) InvalidateProfile(ctx context.Context, userID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		c.logger.Warn("profile cache invalidate", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
