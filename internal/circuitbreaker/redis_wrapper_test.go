package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRedisWrapper_NormalOperations(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	wrapper := NewRedisWrapper(client, "payload-cache", RedisSettings(), zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, wrapper.Ping(ctx).Err())
	require.NoError(t, wrapper.Set(ctx, "osint:sec:CIK0001318605", "{}", time.Minute).Err())

	got := wrapper.Get(ctx, "osint:sec:CIK0001318605")
	require.NoError(t, got.Err())
	assert.Equal(t, "{}", got.Val())

	assert.ErrorIs(t, wrapper.Get(ctx, "osint:missing").Err(), redis.Nil)
	assert.False(t, wrapper.IsCircuitBreakerOpen())

	del := wrapper.Del(ctx, "osint:sec:CIK0001318605")
	require.NoError(t, del.Err())
	assert.Equal(t, int64(1), del.Val())
}

func TestRedisWrapper_CircuitBreakerTriggering(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	wrapper := NewRedisWrapper(client, "payload-cache", RedisSettings(), zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.Error(t, wrapper.Ping(ctx).Err())
	}
	assert.True(t, wrapper.IsCircuitBreakerOpen())
	assert.ErrorIs(t, wrapper.Get(ctx, "any:key").Err(), ErrCircuitBreakerOpen)
}

func TestRedisWrapper_NilDoesNotTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	wrapper := NewRedisWrapper(client, "payload-cache", RedisSettings(), zaptest.NewLogger(t))
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, wrapper.Get(context.Background(), "missing").Err(), redis.Nil)
	}
	assert.False(t, wrapper.IsCircuitBreakerOpen())
}
