package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/renewly/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, burst int) (*UploadLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := newUploadLimiter(client, config.RateLimitConfig{
		UploadRate:        0.001,
		UploadBurst:       burst,
		UploadLockSeconds: 30,
	})
	require.NoError(t, err)
	return limiter, mr
}

func TestAllowTenantSpendsBurst(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	ctx := context.Background()
	tenant := snowflake.ID(4242)

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowTenant(ctx, tenant)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := limiter.AllowTenant(ctx, tenant)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Positive(t, res.RetryAfter)

	other, err := limiter.AllowTenant(ctx, snowflake.ID(7))
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLockTenantIsExclusive(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	ctx := context.Background()
	tenant := snowflake.ID(4242)

	release, ok, err := limiter.LockTenant(ctx, tenant)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = limiter.LockTenant(ctx, tenant)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = limiter.LockTenant(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(31 * time.Second)
	_, ok, err = limiter.LockTenant(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewUploadLimiter(Params{Config: config.Config{}, Log: zap.NewNop()})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowTenant(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	release, ok, err := limiter.LockTenant(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, release(context.Background()))
}

func TestTokenBucketValidatesArguments(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)

	_, err = newUploadLimiter(nil, config.RateLimitConfig{UploadRate: 0, UploadBurst: 1})
	assert.Error(t, err)
}
