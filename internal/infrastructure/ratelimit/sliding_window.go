package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/edugate/internal/domain/models"
)

// SlidingWindow counts timestamps inside the last WindowSeconds. Bursts are
// spread instead of resetting at window edges; each check prunes expired
// entries so the work stays bounded by the limit.
type SlidingWindow struct {
	client redis.UniversalClient
	policy models.Policy
	now    Clock
}

// NewSlidingWindow creates a sliding window strategy.
func NewSlidingWindow(client redis.UniversalClient, policy models.Policy, now Clock) *SlidingWindow {
	return &SlidingWindow{client: client, policy: policy, now: now}
}

// Type implements Strategy.
func (sw *SlidingWindow) Type() models.StrategyType {
	return models.StrategySlidingWindow
}

// Check implements Strategy.
func (sw *SlidingWindow) Check(
	ctx context.Context,
	key string,
	policy models.Policy,
	points int,
	dryRun bool,
) (*models.Result, error) {
	now := sw.now().UnixMilli()
	windowMs := int64(policy.WindowSeconds) * 1000

	vals, err := slidingWindowScript.Run(ctx, sw.client, []string{key},
		now,
		windowMs,
		policy.Limit,
		points,
		boolToInt(dryRun),
		fmt.Sprintf("(%d", now-windowMs),
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, storeError("sliding window check", err)
	}

	allowed, count, resetTime, err := parseTriple(vals)
	if err != nil {
		return nil, storeError("sliding window check", err)
	}

	result := &models.Result{
		Allowed:   allowed == 1,
		Remaining: policy.Limit - int(count),
		Limit:     policy.Limit,
		ResetTime: resetTime,
	}
	if !result.Allowed {
		// The oldest surviving entry decides when a slot frees up.
		result.RetryAfter = max(resetTime-now, 1)
	}

	return result.Normalize(policy), nil
}

// CurrentCount implements Strategy. It only reads; expired entries are excluded
// by score rather than removed.
func (sw *SlidingWindow) CurrentCount(ctx context.Context, key string, windowSeconds int) (int, error) {
	if windowSeconds <= 0 {
		windowSeconds = sw.policy.WindowSeconds
	}
	cutoff := sw.now().UnixMilli() - int64(windowSeconds)*1000

	n, err := sw.client.ZCount(ctx, key, "("+strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil && err != redis.Nil {
		return 0, storeError("sliding window count", err)
	}
	return int(n), nil
}

// Reset implements Strategy.
func (sw *SlidingWindow) Reset(ctx context.Context, key string) error {
	if err := sw.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return storeError("sliding window reset", err)
	}
	return nil
}
