// Package service provides application-level services that orchestrate domain services and infrastructure
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/edugate/internal/domain/models"
	domainService "github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
	"github.com/turtacn/edugate/internal/infrastructure/ratelimit"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

var _ domainService.RateLimitService = (*RateLimitAppService)(nil)

// CheckObserver receives per-check telemetry. *monitoring.Metrics implements it.
type CheckObserver interface {
	ObserveCheck(strategy, rlContext string, d time.Duration)
	RecordStoreFailure(rlContext string, failOpen bool)
}

// RateLimitAppService is the single entry point of the admission engine. It
// resolves the effective policy, picks the strategy and normalizes the result.
type RateLimitAppService struct {
	resolver *ratelimit.Resolver
	factory  *ratelimit.Factory
	sink     domainService.MetricsSink
	observer CheckObserver
	tracer   trace.Tracer
	logger   logger.Logger
}

// RateLimitOption configures a RateLimitAppService.
type RateLimitOption func(*RateLimitAppService)

// WithMetricsSink records hit/block/error events asynchronously.
func WithMetricsSink(sink domainService.MetricsSink) RateLimitOption {
	return func(s *RateLimitAppService) { s.sink = sink }
}

// WithCheckObserver records check latency and store failures.
func WithCheckObserver(o CheckObserver) RateLimitOption {
	return func(s *RateLimitAppService) { s.observer = o }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) RateLimitOption {
	return func(s *RateLimitAppService) { s.tracer = t }
}

// NewRateLimitAppService creates the facade.
func NewRateLimitAppService(
	resolver *ratelimit.Resolver,
	factory *ratelimit.Factory,
	log logger.Logger,
	opts ...RateLimitOption,
) *RateLimitAppService {
	s := &RateLimitAppService{
		resolver: resolver,
		factory:  factory,
		tracer:   otel.Tracer(monitoring.TracerName),
		logger:   log.WithComponent("ratelimit"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckLimit implements domainService.RateLimitService.
func (s *RateLimitAppService) CheckLimit(
	ctx context.Context,
	key string,
	limit, windowSeconds int,
	opts models.CheckOptions,
) (*models.Result, error) {
	return s.check(ctx, key, models.Policy{Limit: limit, WindowSeconds: windowSeconds}, opts, true)
}

// CheckPolicy implements domainService.RateLimitService.
func (s *RateLimitAppService) CheckPolicy(
	ctx context.Context,
	key string,
	local models.Policy,
	opts models.CheckOptions,
) (*models.Result, error) {
	return s.check(ctx, key, local, opts, true)
}

// Consume implements domainService.RateLimitService.
func (s *RateLimitAppService) Consume(
	ctx context.Context,
	key string,
	local models.Policy,
	opts models.CheckOptions,
) (*models.Result, error) {
	return s.check(ctx, key, local, opts, false)
}

func (s *RateLimitAppService) check(
	ctx context.Context,
	key string,
	local models.Policy,
	opts models.CheckOptions,
	maskStoreErrors bool,
) (*models.Result, error) {
	if key == "" {
		return nil, errors.ErrInvalidRequest("rate limit key is required")
	}

	policy := s.resolver.Resolve(opts.Context, local)
	strategyType := strategyOf(policy)

	ctx, span := s.tracer.Start(ctx, "ratelimit.check", trace.WithAttributes(
		attribute.String("ratelimit.context", opts.Context),
		attribute.String("ratelimit.strategy", string(strategyType)),
		attribute.String("ratelimit.identifier", opts.Identifier),
		attribute.Bool("ratelimit.dry_run", opts.DryRun),
	))
	defer span.End()

	if !policy.Resolvable() {
		s.logger.Warn(ctx, "rate limit policy unresolved, not limiting",
			logger.Error(errors.ErrMisconfiguredPolicy(opts.Context, policy.Limit, policy.WindowSeconds)),
			logger.String("key", key),
		)
		return (&models.Result{Allowed: true}).Normalize(policy), nil
	}

	strategy, err := s.factory.GetStrategy(strategyType, policy, opts.Context)
	if err != nil {
		monitoring.RecordError(span, err)
		return nil, err
	}

	points := policy.Points()
	if opts.ConsumePoints > 0 {
		points = opts.ConsumePoints
	}

	start := time.Now()
	result, err := strategy.Check(ctx, key, policy, points, opts.DryRun)
	if s.observer != nil {
		s.observer.ObserveCheck(string(strategyType), opts.Context, time.Since(start))
	}

	if err != nil {
		monitoring.RecordError(span, err)
		s.recordAsync(ctx, constants.MetricEventError, opts.Context)
		if s.observer != nil {
			s.observer.RecordStoreFailure(opts.Context, policy.IsFailOpen())
		}
		if !maskStoreErrors {
			return nil, err
		}

		s.logger.Error(ctx, "rate limit store failure", err,
			logger.String("key", key),
			logger.String("strategy", string(strategyType)),
			logger.Bool("fail_open", policy.IsFailOpen()),
		)
		result = ratelimit.FailPolicyResult(policy, s.factory.Clock()())
	} else if !opts.DryRun {
		event := constants.MetricEventHit
		if !result.Allowed {
			event = constants.MetricEventBlock
		}
		s.recordAsync(ctx, event, opts.Context)
	}

	result.Normalize(policy)
	span.SetAttributes(
		attribute.Bool("ratelimit.allowed", result.Allowed),
		attribute.Int("ratelimit.remaining", result.Remaining),
	)
	return result, nil
}

// GetCurrentCount implements domainService.RateLimitService. A store failure is
// logged and reported as 0.
func (s *RateLimitAppService) GetCurrentCount(ctx context.Context, key string, windowSeconds int, rlContext string) (int, error) {
	if key == "" {
		return 0, errors.ErrInvalidRequest("rate limit key is required")
	}

	policy := s.resolver.Resolve(rlContext, models.Policy{WindowSeconds: windowSeconds})
	strategy, err := s.strategyForKey(ctx, key, policy, rlContext)
	if err != nil {
		if errors.IsStoreUnavailable(err) {
			s.logger.Error(ctx, "failed to read rate limit count", err, logger.String("key", key))
			return 0, nil
		}
		return 0, err
	}

	count, err := strategy.CurrentCount(ctx, key, policy.WindowSeconds)
	if err != nil {
		s.logger.Error(ctx, "failed to read rate limit count", err, logger.String("key", key))
		return 0, nil
	}
	return count, nil
}

// Reset implements domainService.RateLimitService.
func (s *RateLimitAppService) Reset(ctx context.Context, key string, rlContext string) error {
	if key == "" {
		return errors.ErrInvalidRequest("rate limit key is required")
	}

	policy := s.resolver.Resolve(rlContext, models.Policy{})
	strategy, err := s.strategyForKey(ctx, key, policy, rlContext)
	if err != nil {
		s.logger.Error(ctx, "failed to reset rate limit", err, logger.String("key", key))
		return err
	}

	if err := strategy.Reset(ctx, key); err != nil {
		s.logger.Error(ctx, "failed to reset rate limit", err, logger.String("key", key))
		return err
	}
	s.logger.Info(ctx, "rate limit reset", logger.String("key", key), logger.String("context", rlContext))
	return nil
}

// BuildKey implements domainService.RateLimitService.
func (s *RateLimitAppService) BuildKey(rlContext, identifier string) string {
	policy := s.resolver.Resolve(rlContext, models.Policy{})
	return ratelimit.BuildKey(policy.KeyPrefix, rlContext, identifier)
}

// ResolvePolicy implements domainService.RateLimitService.
func (s *RateLimitAppService) ResolvePolicy(rlContext string, local models.Policy) models.Policy {
	return s.resolver.Resolve(rlContext, local)
}

// Reload swaps the policy tables and drops every cached strategy.
func (s *RateLimitAppService) Reload(defaults models.Policy, contexts map[string]models.Policy) {
	s.resolver.Update(defaults, contexts)
	s.factory.ClearCache()
	s.logger.Info(context.Background(), "rate limit policies reloaded", logger.Int("contexts", len(contexts)))
}

func (s *RateLimitAppService) recordAsync(ctx context.Context, event constants.MetricEvent, rlContext string) {
	monitoring.RecordAsync(ctx, s.sink, s.logger, event, rlContext, "")
}

// strategyForKey picks the strategy that owns key's window record. Route and
// gateway overrides may count a key with another strategy than its context, so
// the stored type wins over the context policy.
func (s *RateLimitAppService) strategyForKey(ctx context.Context, key string, policy models.Policy, rlContext string) (ratelimit.Strategy, error) {
	strategyType := strategyOf(policy)
	stored, ok, err := s.factory.StoredStrategy(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		strategyType = stored
	}
	return s.factory.GetStrategy(strategyType, policy, rlContext)
}

func strategyOf(p models.Policy) models.StrategyType {
	if p.Strategy == "" {
		return models.StrategySlidingWindow
	}
	return p.Strategy
}
