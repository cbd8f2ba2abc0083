// Package service defines the interfaces for domain services.
package service

import (
	"context"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/constants"
)

// RateLimitService is the facade every admission surface goes through.
// Collaborators never reach strategies or the store directly.
// RateLimitService 是所有准入入口使用的门面，调用方不会直接访问策略或存储。
type RateLimitService interface {
	// CheckLimit consumes against the effective policy for key. limit and windowSeconds
	// are local overrides (0 = not set). Store failures are resolved through the
	// policy's fail-open flag and are never returned.
	CheckLimit(ctx context.Context, key string, limit, windowSeconds int, opts models.CheckOptions) (*models.Result, error)

	// CheckPolicy is CheckLimit with a full local policy override (strategy,
	// key prefix, fail-open), as used by per-route tables.
	CheckPolicy(ctx context.Context, key string, local models.Policy, opts models.CheckOptions) (*models.Result, error)

	// Consume behaves like CheckLimit with a full local policy override but returns
	// store failures to the caller, so it can tell "exceeded" apart from "backend error".
	Consume(ctx context.Context, key string, local models.Policy, opts models.CheckOptions) (*models.Result, error)

	// GetCurrentCount returns the number of points currently counted for key.
	GetCurrentCount(ctx context.Context, key string, windowSeconds int, rlContext string) (int, error)

	// Reset deletes the window record of key. Store errors are propagated.
	Reset(ctx context.Context, key string, rlContext string) error

	// BuildKey builds the store key for identifier using the context's key prefix.
	BuildKey(rlContext, identifier string) string

	// ResolvePolicy returns the effective policy for a context and a local override.
	ResolvePolicy(rlContext string, local models.Policy) models.Policy
}

// MetricsSink records admission events. Implementations may fail; callers treat
// every record as best effort.
// MetricsSink 记录准入事件，调用方将每次记录视为尽力而为。
type MetricsSink interface {
	Record(ctx context.Context, event constants.MetricEvent, rlContext, stage string) error
}

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Claims, error)
}

// UserDirectory looks up accounts for the post-authentication checks.
// A missing user is reported as a not_found AppError.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// NotificationSender delivers a notification once it has been admitted.
type NotificationSender interface {
	Send(ctx context.Context, n *models.Notification) error
}
