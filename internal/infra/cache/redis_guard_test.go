package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, exp time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, taken := f.keys[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = exp
	return redis.NewBoolResult(true, nil)
}

func TestRedisGuardClaimsOnce(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	g := &RedisGuard{client: fake}

	first, err := g.Claim(context.Background(), "abc", 10*time.Minute)
	require.NoError(t, err)
	second, err := g.Claim(context.Background(), "abc", 10*time.Minute)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 10*time.Minute, fake.keys["eva:lead:abc"])
}

func TestRedisGuardError(t *testing.T) {
	g := &RedisGuard{client: &fakeRedis{err: errors.New("connection refused")}}

	ok, err := g.Claim(context.Background(), "abc", time.Minute)

	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, g.Ping(context.Background()))
	assert.NoError(t, g.Close())
}
