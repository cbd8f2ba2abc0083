// Package ratelimitadapter provides the increment/TTL throttler storage used by
// the coarse admin throttle. It predates the strategy engine and is kept for
// surfaces that only need a hit counter.
package ratelimitadapter

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

// Record is the state of one throttler key after an increment.
type Record struct {
	TotalHits    int
	TimeToExpire time.Duration
}

// Storage is the throttler storage contract.
type Storage interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (Record, error)
	Reset(ctx context.Context, key string) error
}

var incrementScript = redis.NewScript(`
local hits = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisStorage stores throttler counters in Redis. Without a client every
// operation is a no-op that reports zero hits.
type RedisStorage struct {
	client redis.UniversalClient
	logger logger.Logger
	warn   sync.Once
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates the storage adapter. client may be nil.
func NewRedisStorage(client redis.UniversalClient, log logger.Logger) *RedisStorage {
	return &RedisStorage{client: client, logger: log.WithComponent("throttler")}
}

// Increment implements Storage.
func (s *RedisStorage) Increment(ctx context.Context, key string, ttl time.Duration) (Record, error) {
	if !s.usable(ctx) {
		return Record{}, nil
	}

	vals, err := incrementScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Record{}, errors.ErrStoreUnavailable(err)
	}
	if len(vals) < 2 {
		return Record{}, errors.ErrServerError("unexpected throttler script result")
	}
	return Record{
		TotalHits:    int(vals[0]),
		TimeToExpire: time.Duration(vals[1]) * time.Millisecond,
	}, nil
}

// Reset implements Storage.
func (s *RedisStorage) Reset(ctx context.Context, key string) error {
	if !s.usable(ctx) {
		return nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.ErrStoreUnavailable(err)
	}
	return nil
}

func (s *RedisStorage) usable(ctx context.Context) bool {
	if s.client != nil {
		return true
	}
	s.warn.Do(func() {
		s.logger.Warn(ctx, "throttler storage disabled",
			logger.Error(errors.ErrUnsupportedAdapter("redis throttler storage", "a redis client")),
		)
	})
	return false
}
