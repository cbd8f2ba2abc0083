// Package ratelimit provides distributed rate limiting strategies backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/errors"
)

// Strategy is one counting algorithm bound to the shared store. Implementations
// hold no per-key state; every call is a single store round trip.
type Strategy interface {
	// Type returns the algorithm implemented by the strategy.
	Type() models.StrategyType

	// Check consumes points for key under policy, or only evaluates when dryRun.
	// Store failures are returned as ErrStoreUnavailable.
	Check(ctx context.Context, key string, policy models.Policy, points int, dryRun bool) (*models.Result, error)

	// CurrentCount returns the points counted for key. windowSeconds 0 means the
	// window of the policy the strategy was built with.
	CurrentCount(ctx context.Context, key string, windowSeconds int) (int, error)

	// Reset deletes the window record of key.
	Reset(ctx context.Context, key string) error
}

// Clock returns the current time; tests replace it.
type Clock func() time.Time

// FailPolicyResult is the outcome used when the store cannot be consulted.
// Fail-open favours availability, fail-closed favours safety.
func FailPolicyResult(policy models.Policy, now time.Time) *models.Result {
	windowMs := int64(policy.WindowSeconds) * 1000
	if policy.IsFailOpen() {
		return &models.Result{
			Allowed:   true,
			Remaining: policy.Limit,
			Limit:     policy.Limit,
			ResetTime: now.UnixMilli() + windowMs,
		}
	}
	return &models.Result{
		Allowed:    false,
		Remaining:  0,
		Limit:      policy.Limit,
		RetryAfter: windowMs,
	}
}

func storeError(op string, err error) error {
	return errors.ErrStoreUnavailable(fmt.Errorf("%s: %w", op, err))
}

func parseTriple(vals []int64) (int64, int64, int64, error) {
	if len(vals) < 3 {
		return 0, 0, 0, fmt.Errorf("invalid Lua script result: %v", vals)
	}
	return vals[0], vals[1], vals[2], nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
