package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
)

// Factory builds strategies and caches them by (type, context). A cache hit
// ignores the policy argument; per-call policies travel through Strategy.Check.
// Call ClearCache after the policy tables change.
type Factory struct {
	client redis.UniversalClient
	now    Clock

	mu    sync.RWMutex
	cache map[string]Strategy
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithClock overrides the clock used by sliding window strategies.
func WithClock(now Clock) FactoryOption {
	return func(f *Factory) {
		f.now = now
	}
}

// NewFactory creates a strategy factory over the shared store client.
func NewFactory(client redis.UniversalClient, opts ...FactoryOption) *Factory {
	f := &Factory{
		client: client,
		now:    time.Now,
		cache:  make(map[string]Strategy),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetStrategy returns the cached strategy for (strategyType, rlContext) or builds
// one with policy. An empty context shares the "default" slot.
func (f *Factory) GetStrategy(strategyType models.StrategyType, policy models.Policy, rlContext string) (Strategy, error) {
	if !strategyType.Valid() {
		return nil, errors.ErrUnsupportedStrategy(string(strategyType))
	}

	if rlContext == "" {
		rlContext = constants.RateLimitContextDefault
	}
	cacheKey := string(strategyType) + constants.RateLimitKeySeparator + rlContext

	f.mu.RLock()
	s, ok := f.cache[cacheKey]
	f.mu.RUnlock()
	if ok {
		return s, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.cache[cacheKey]; ok {
		return s, nil
	}

	switch strategyType {
	case models.StrategyFixedWindow:
		s = NewFixedWindow(f.client, policy)
	default:
		s = NewSlidingWindow(f.client, policy, f.now)
	}
	f.cache[cacheKey] = s
	return s, nil
}

// StoredStrategy reports which strategy wrote key, from the Redis type of its
// window record: a string is a fixed window counter, a sorted set a sliding
// window. ok is false when the key does not exist or has another type.
func (f *Factory) StoredStrategy(ctx context.Context, key string) (strategyType models.StrategyType, ok bool, err error) {
	kind, err := f.client.Type(ctx, key).Result()
	if err != nil {
		return "", false, storeError("window type", err)
	}
	switch kind {
	case "string":
		return models.StrategyFixedWindow, true, nil
	case "zset":
		return models.StrategySlidingWindow, true, nil
	default:
		return "", false, nil
	}
}

// ClearCache drops every cached strategy.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	f.cache = make(map[string]Strategy)
	f.mu.Unlock()
}

// Size returns the number of cached strategies.
func (f *Factory) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

// Clock returns the clock strategies are built with.
func (f *Factory) Clock() Clock {
	return f.now
}
