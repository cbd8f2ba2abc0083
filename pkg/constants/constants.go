// Package constants defines system-wide constants for the edugate admission service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Rate Limit Context Constants
// ================================================================================

// RateLimitContext names a surface that carries its own policy override.
type RateLimitContext string

const (
	// RateLimitContextHTTP applies to inbound HTTP requests
	RateLimitContextHTTP RateLimitContext = "http"

	// RateLimitContextWebSocket applies to persistent connection attempts
	RateLimitContextWebSocket RateLimitContext = "websocket"

	// RateLimitContextNotification applies to outbound notification dispatch
	RateLimitContextNotification RateLimitContext = "notification"

	// RateLimitContextDefault is the cache slot used when no context is given
	RateLimitContextDefault = "default"
)

// ================================================================================
// Rate Limit Key Constants
// ================================================================================

const (
	// RateLimitKeySegment is the fixed path segment of every limiter key
	RateLimitKeySegment = "rate-limit"

	// RateLimitKeySeparator joins the key components
	RateLimitKeySeparator = ":"

	// GatewayIPNamespace prefixes the identifier of the gateway IP stage
	GatewayIPNamespace = "ip"

	// GatewayUserNamespace prefixes the identifier of the gateway user stage
	GatewayUserNamespace = "user"

	// MetricsKeyPrefix is the prefix for Redis-backed admission counters
	MetricsKeyPrefix = "metrics:rate-limit"
)

// ================================================================================
// Rate Limit Defaults
// ================================================================================

const (
	// DefaultRateLimit is the request budget applied when nothing else is configured
	DefaultRateLimit = 100

	// DefaultRateLimitWindowSeconds is the default window length
	DefaultRateLimitWindowSeconds = 60

	// DefaultConsumePoints is the cost of a single operation
	DefaultConsumePoints = 1

	// SlidingWindowTTLPaddingSeconds keeps sorted sets alive slightly past the window
	SlidingWindowTTLPaddingSeconds = 1

	// MinRetryAfterSeconds is the smallest Retry-After value ever emitted
	MinRetryAfterSeconds = 1

	// MetricsCounterTTL bounds the lifetime of a daily Redis metrics hash
	MetricsCounterTTL = 8 * 24 * time.Hour

	// UserDirectoryCacheTTL is how long a user lookup is cached by the gateway
	UserDirectoryCacheTTL = 30 * time.Second

	// DefaultShutdownTimeout is the graceful shutdown timeout (30 seconds)
	DefaultShutdownTimeout = 30 * time.Second
)

// ================================================================================
// HTTP Header Constants
// ================================================================================

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"

	HeaderForwardedFor  = "X-Forwarded-For"
	HeaderRealIP        = "X-Real-IP"
	HeaderConnectingIP  = "CF-Connecting-IP"
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
	QueryParamToken     = "token"
)

// ================================================================================
// Metric Event Constants
// ================================================================================

// MetricEvent is the kind of admission event recorded by the metrics sink.
type MetricEvent string

const (
	// MetricEventHit is recorded when a check admits the operation
	MetricEventHit MetricEvent = "hit"

	// MetricEventBlock is recorded when a check rejects the operation
	MetricEventBlock MetricEvent = "block"

	// MetricEventError is recorded when the store could not be consulted
	MetricEventError MetricEvent = "error"
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyUserID is the key for the authenticated user id
	ContextKeyUserID ContextKey = "user_id"

	// ContextKeyTenantID is the key for tenant ID in context
	ContextKeyTenantID ContextKey = "tenant_id"

	// ContextKeyClientIP is the key for client IP address in context
	ContextKeyClientIP ContextKey = "client_ip"

	// ContextKeyIdentity is the key for the admitted gateway identity
	ContextKeyIdentity ContextKey = "identity"
)
