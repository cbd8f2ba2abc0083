package ratelimitadapter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/edugate/pkg/logger"
)

func TestRedisStorage_Increment(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStorage(client, logger.NewNoopLogger())
	ctx := context.Background()

	rec, err := s.Increment(ctx, "throttle:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalHits)
	assert.Equal(t, time.Minute, rec.TimeToExpire)

	rec, err = s.Increment(ctx, "throttle:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TotalHits)

	mr.FastForward(time.Minute)
	rec, err = s.Increment(ctx, "throttle:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalHits)

	require.NoError(t, s.Reset(ctx, "throttle:a"))
	assert.False(t, mr.Exists("throttle:a"))
}

func TestRedisStorage_NoClientIsNoop(t *testing.T) {
	s := NewRedisStorage(nil, logger.NewNoopLogger())

	for i := 0; i < 3; i++ {
		rec, err := s.Increment(context.Background(), "k", time.Second)
		require.NoError(t, err)
		assert.Zero(t, rec.TotalHits)
	}
	assert.NoError(t, s.Reset(context.Background(), "k"))
}
