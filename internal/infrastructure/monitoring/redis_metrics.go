package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/edugate/pkg/constants"
)

// RedisMetrics keeps one hash of admission counters per UTC day in the shared
// store, so every process of the fleet contributes to the same totals.
type RedisMetrics struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisMetrics creates the Redis metrics sink.
func NewRedisMetrics(client redis.UniversalClient) *RedisMetrics {
	return &RedisMetrics{client: client, now: time.Now}
}

// Record implements service.MetricsSink.
func (m *RedisMetrics) Record(ctx context.Context, event constants.MetricEvent, rlContext, stage string) error {
	key := m.DailyKey(m.now())
	field := CounterField(event, rlContext, stage)

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, field, 1)
		pipe.Expire(ctx, key, constants.MetricsCounterTTL)
		return nil
	})
	return err
}

// Counters returns the counters of the given day.
func (m *RedisMetrics) Counters(ctx context.Context, day time.Time) (map[string]string, error) {
	return m.client.HGetAll(ctx, m.DailyKey(day)).Result()
}

// DailyKey returns the hash key holding the counters of day.
func (m *RedisMetrics) DailyKey(day time.Time) string {
	return constants.MetricsKeyPrefix + constants.RateLimitKeySeparator + day.UTC().Format("2006-01-02")
}

// CounterField is the hash field of one (event, context, stage) combination.
func CounterField(event constants.MetricEvent, rlContext, stage string) string {
	if rlContext == "" {
		rlContext = constants.RateLimitContextDefault
	}
	parts := []string{rlContext}
	if stage != "" {
		parts = append(parts, stage)
	}
	parts = append(parts, string(event))
	return strings.Join(parts, constants.RateLimitKeySeparator)
}
