package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T) *RedisLimiter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLimiter(client, "test:ratelimit:")
}

func TestRedisLimiter_Allow(t *testing.T) {
	limiter := newTestRedisLimiter(t)
	ctx := context.Background()

	limit := 3
	window := time.Minute

	for i := 0; i < limit; i++ {
		allowed, err := limiter.Allow(ctx, "reporter-1", limit, window)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "reporter-1", limit, window)
	require.NoError(t, err)
	assert.False(t, allowed, "request over limit should be denied")
}

func TestRedisLimiter_AllowWithInfo(t *testing.T) {
	limiter := newTestRedisLimiter(t)
	ctx := context.Background()

	allowed, info, err := limiter.AllowWithInfo(ctx, "reporter-2", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NotNil(t, info)
	assert.Equal(t, 5, info.Limit)
	assert.Equal(t, 4, info.Remaining)
	assert.False(t, info.ResetTime.IsZero())
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	limiter := newTestRedisLimiter(t)
	ctx := context.Background()

	limit := 2
	window := time.Minute

	limiter.Allow(ctx, "reporter-a", limit, window)
	limiter.Allow(ctx, "reporter-a", limit, window)

	allowedA, err := limiter.Allow(ctx, "reporter-a", limit, window)
	require.NoError(t, err)
	assert.False(t, allowedA, "reporter-a should be limited")

	allowedB, err := limiter.Allow(ctx, "reporter-b", limit, window)
	require.NoError(t, err)
	assert.True(t, allowedB, "reporter-b keeps its own budget")
}

func TestRedisLimiter_Reset(t *testing.T) {
	limiter := newTestRedisLimiter(t)
	ctx := context.Background()

	limit := 2
	window := time.Minute

	limiter.Allow(ctx, "reporter-3", limit, window)
	limiter.Allow(ctx, "reporter-3", limit, window)

	allowed, _ := limiter.Allow(ctx, "reporter-3", limit, window)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "reporter-3"))

	allowed, err := limiter.Allow(ctx, "reporter-3", limit, window)
	require.NoError(t, err)
	assert.True(t, allowed, "reset key should be allowed again")
}

func TestRedisLimiter_Ping(t *testing.T) {
	limiter := newTestRedisLimiter(t)
	assert.NoError(t, limiter.Ping(context.Background()))
}
