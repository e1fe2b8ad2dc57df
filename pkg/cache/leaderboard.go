package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ElementalEngine/core-api-backend/internal/models"
	"github.com/ElementalEngine/core-api-backend/pkg/logger"
)

const keyPrefix = "leaderboard:"

// LeaderboardCache is a Redis-backed read-through cache over the ranked
// projections. Every failure degrades to a cache miss; the database
// remains the source of truth.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates a cache with the given entry lifetime.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

// Get returns the cached projection for a stats-store key, if present.
func (c *LeaderboardCache) Get(key string) ([]models.LeaderboardEntry, bool) {
	ctx := context.Background()

	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Leaderboard cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.Warn("Corrupt leaderboard cache entry", "key", key, "error", err)
		c.client.Del(ctx, keyPrefix+key)
		return nil, false
	}
	return entries, true
}

// Set stores a projection under a stats-store key.
func (c *LeaderboardCache) Set(key string, entries []models.LeaderboardEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		logger.Warn("Failed to encode leaderboard for cache", "key", key, "error", err)
		return
	}

	if err := c.client.Set(context.Background(), keyPrefix+key, raw, c.ttl).Err(); err != nil {
		logger.Warn("Leaderboard cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops the cached projections for the given keys.
func (c *LeaderboardCache) Invalidate(keys ...string) {
	if len(keys) == 0 {
		return
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	if err := c.client.Del(context.Background(), prefixed...).Err(); err != nil {
		logger.Warn("Leaderboard cache invalidation failed", "keys", keys, "error", err)
	}
}
