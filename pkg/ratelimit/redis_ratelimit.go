package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces a token-bucket limit shared across engine
// replicas. Refill and consumption run in one Lua script so concurrent
// submissions cannot double-spend tokens.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLimiter wraps an existing Redis connection.
func NewRedisLimiter(client *redis.Client, keyPrefix string) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisLimiter{client: client, keyPrefix: keyPrefix}
}

// Info describes the state of a key's bucket after a check.
type Info struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local tokens_key = key .. ":tokens"
	local timestamp_key = key .. ":timestamp"

	local tokens = tonumber(redis.call('GET', tokens_key))
	local last_update = tonumber(redis.call('GET', timestamp_key))

	if tokens == nil then
		tokens = limit
		last_update = now
	end

	local elapsed = now - last_update
	local refill_rate = limit / window
	local new_tokens = math.min(limit, tokens + (elapsed * refill_rate))

	local allowed = 0
	if new_tokens >= 1 then
		new_tokens = new_tokens - 1
		allowed = 1
	end

	redis.call('SET', tokens_key, new_tokens, 'EX', window * 2)
	redis.call('SET', timestamp_key, now, 'EX', window * 2)

	return {allowed, math.floor(new_tokens), last_update + window}
`)

// Allow reports whether a request under the key fits the limit.
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := r.AllowWithInfo(ctx, key, limit, window)
	return allowed, err
}

// AllowWithInfo is Allow plus the bucket state for response headers.
func (r *RedisLimiter) AllowWithInfo(ctx context.Context, key string, limit int, window time.Duration) (bool, *Info, error) {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	now := time.Now().Unix()
	result, err := bucketScript.Run(ctx, r.client,
		[]string{r.keyPrefix + key}, limit, int(window.Seconds()), now).Result()
	if err != nil {
		return false, nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return false, nil, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetAt, _ := values[2].(int64)

	return allowed == 1, &Info{
		Limit:     limit,
		Remaining: int(remaining),
		ResetTime: time.Unix(resetAt, 0),
	}, nil
}

// Reset clears the key's bucket.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	redisKey := r.keyPrefix + key
	pipe := r.client.Pipeline()
	pipe.Del(ctx, redisKey+":tokens")
	pipe.Del(ctx, redisKey+":timestamp")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}

// Ping checks the underlying Redis connection.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
