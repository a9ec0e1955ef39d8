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

func newTestRedisLimiter(t *testing.T, cfg Config) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, "google_ads", cfg), mr
}

func TestRedisLimiterAdmitsUpToCeiling(t *testing.T) {
	l, _ := newTestRedisLimiter(t, Config{PerMinute: 3, PerHour: 100, PerDay: 1000})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be admitted", i+1)
	}

	allowed, err := l.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisLimiterDenialDoesNotIncrement(t *testing.T) {
	l, _ := newTestRedisLimiter(t, Config{PerMinute: 2, PerHour: 100, PerDay: 1000})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow(ctx)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	for i := 0; i < 5; i++ {
		allowed, err := l.Allow(ctx)
		require.NoError(t, err)
		require.False(t, allowed)
	}

	usage, err := l.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Minute)
}

func TestRedisLimiterWindowExpiry(t *testing.T) {
	l, mr := newTestRedisLimiter(t, Config{PerMinute: 1, PerHour: 100, PerDay: 1000})
	ctx := context.Background()

	allowed, err := l.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = l.Allow(ctx)
	require.NoError(t, err)
	require.False(t, allowed)

	mr.FastForward(61 * time.Second)

	allowed, err = l.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed, "admission must resume after the minute key expires")
}

func TestRedisLimiterSharedQuotaAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := Config{PerMinute: 2, PerHour: 100, PerDay: 1000}
	a := NewRedisLimiter(client, "facebook_ads", cfg)
	b := NewRedisLimiter(client, "facebook_ads", cfg)
	ctx := context.Background()

	allowed, err := a.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, err = b.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	// Quota exhausted for both holders of the same prefix.
	allowed, err = a.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = b.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisLimiterUsageEmpty(t *testing.T) {
	l, _ := newTestRedisLimiter(t, Config{PerMinute: 5, PerHour: 5, PerDay: 5})
	usage, err := l.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Usage{}, usage)
}
