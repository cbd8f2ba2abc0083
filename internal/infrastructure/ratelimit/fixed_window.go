package ratelimit

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/edugate/internal/domain/models"
)

// FixedWindow is an O(1) counter whose window starts at the first consumption
// and is timed by the store's TTL. It allows up to twice the limit across a
// window edge, which is accepted for high-volume HTTP paths.
type FixedWindow struct {
	client redis.UniversalClient
	policy models.Policy
}

// NewFixedWindow creates a fixed window strategy.
func NewFixedWindow(client redis.UniversalClient, policy models.Policy) *FixedWindow {
	return &FixedWindow{client: client, policy: policy}
}

// Type implements Strategy.
func (fw *FixedWindow) Type() models.StrategyType {
	return models.StrategyFixedWindow
}

// Check implements Strategy. A dry run uses a read-only script so that no
// increment/decrement pair can race with real consumptions.
func (fw *FixedWindow) Check(
	ctx context.Context,
	key string,
	policy models.Policy,
	points int,
	dryRun bool,
) (*models.Result, error) {
	windowMs := int64(policy.WindowSeconds) * 1000

	var cmd *redis.Cmd
	if dryRun {
		cmd = fixedWindowPeekScript.Run(ctx, fw.client, []string{key})
	} else {
		cmd = fixedWindowScript.Run(ctx, fw.client, []string{key}, points, windowMs)
	}

	vals, err := cmd.Int64Slice()
	if err != nil {
		return nil, storeError("fixed window check", err)
	}
	count, ttl, storeNow, err := parseTriple(vals)
	if err != nil {
		return nil, storeError("fixed window check", err)
	}
	if ttl <= 0 {
		ttl = windowMs
	}

	projected := count
	if dryRun {
		projected = count + int64(points)
	}

	result := &models.Result{
		Allowed:   projected <= int64(policy.Limit),
		Remaining: policy.Limit - int(count),
		Limit:     policy.Limit,
		ResetTime: storeNow + ttl,
	}
	if !result.Allowed {
		result.RetryAfter = ttl
	}

	return result.Normalize(policy), nil
}

// CurrentCount implements Strategy. The window length is fixed by the key's TTL,
// so windowSeconds is not needed to read the counter.
func (fw *FixedWindow) CurrentCount(ctx context.Context, key string, _ int) (int, error) {
	raw, err := fw.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, storeError("fixed window count", err)
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, storeError("fixed window count", err)
	}
	return n, nil
}

// Reset implements Strategy.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if err := fw.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return storeError("fixed window reset", err)
	}
	return nil
}
