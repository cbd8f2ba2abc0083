// Package gateway implements admission of persistent connections. A connection
// attempt passes an IP stage before any token work, then authentication, then
// a per-account stage.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
	"github.com/turtacn/edugate/pkg/utils"
)

// Rejection stages.
const (
	StageIP   = "ip"
	StageAuth = "auth"
	StageUser = "user"
)

const (
	msgIPExceeded         = "too many connection attempts from this IP"
	msgUserExceeded       = "too many connection attempts for this account"
	msgLimiterUnavailable = "connection limiter unavailable"
	msgAuthFailed         = "authentication failed"
	msgUserUnknown        = "user not found or inactive"
	msgDirectoryDown      = "user directory unavailable"
)

// Attempt is one connection attempt as seen by the gateway.
type Attempt struct {
	// ClientIP is the raw client address; it is normalized before use.
	ClientIP string
	// Token is the bearer token offered by the client.
	Token string
}

// Admission runs the two-stage connection admission.
// Admission 执行两阶段连接准入：先按 IP 限流，再认证并按用户限流。
type Admission struct {
	limiter  service.RateLimitService
	verifier service.TokenVerifier
	users    service.UserDirectory
	sink     service.MetricsSink
	cfg      config.GatewayConfig
	logger   logger.Logger
	now      func() time.Time
}

// NewAdmission wires the admission pipeline. sink may be nil.
func NewAdmission(
	limiter service.RateLimitService,
	verifier service.TokenVerifier,
	users service.UserDirectory,
	sink service.MetricsSink,
	cfg config.GatewayConfig,
	log logger.Logger,
) *Admission {
	return &Admission{
		limiter:  limiter,
		verifier: verifier,
		users:    users,
		sink:     sink,
		cfg:      cfg,
		logger:   log.WithComponent("gateway"),
		now:      time.Now,
	}
}

// Admit returns the identity of an admitted attempt, or a connection_rejected
// AppError whose metadata names the stage that refused it.
func (a *Admission) Admit(ctx context.Context, attempt Attempt) (*models.Identity, error) {
	ip := utils.NormalizeIP(attempt.ClientIP)

	if err := a.consume(ctx, StageIP, constants.GatewayIPNamespace, ip, a.cfg.IPPolicy, msgIPExceeded); err != nil {
		return nil, err
	}

	claims, err := a.verifier.Verify(ctx, attempt.Token)
	if err != nil {
		a.logger.Debug(ctx, "connection token rejected", logger.Error(err), logger.String("client_ip", ip))
		return nil, a.reject(ctx, StageAuth, errors.ErrConnectionRejected(StageAuth, msgAuthFailed, http.StatusUnauthorized).WithCause(err))
	}

	userID := claims.UserID()
	user, err := a.users.GetUser(ctx, userID)
	switch {
	case errors.HasCode(err, errors.CodeNotFound):
		return nil, a.reject(ctx, StageUser, errors.ErrConnectionRejected(StageUser, msgUserUnknown, http.StatusForbidden))
	case err != nil:
		a.logger.Error(ctx, "user lookup failed", err, logger.String("user_id", userID))
		return nil, a.reject(ctx, StageUser,
			errors.ErrConnectionRejected(StageUser, msgDirectoryDown, http.StatusServiceUnavailable).WithCause(err))
	case user == nil || !user.Active:
		return nil, a.reject(ctx, StageUser, errors.ErrConnectionRejected(StageUser, msgUserUnknown, http.StatusForbidden))
	}

	if err := a.consume(ctx, StageUser, constants.GatewayUserNamespace, user.ID, a.cfg.UserPolicy, msgUserExceeded); err != nil {
		return nil, err
	}

	tenantID := user.TenantID
	if tenantID == "" {
		tenantID = claims.TenantID
	}
	return &models.Identity{
		UserID:   user.ID,
		TenantID: tenantID,
		Role:     claims.Role,
		ClientIP: ip,
	}, nil
}

// consume charges one connection attempt to namespace:id. A store failure is
// resolved by the effective policy's fail-open flag.
func (a *Admission) consume(ctx context.Context, stage, namespace, id string, local models.Policy, exceededMsg string) error {
	rlContext := string(constants.RateLimitContextWebSocket)
	identifier := namespace + constants.RateLimitKeySeparator + id
	key := a.limiter.BuildKey(rlContext, identifier)

	res, err := a.limiter.Consume(ctx, key, local, models.CheckOptions{
		Context:    rlContext,
		Identifier: identifier,
	})
	if err != nil {
		if !errors.IsStoreUnavailable(err) {
			// Misconfiguration, not an outage.
			a.logger.Error(ctx, "connection limiter failed", err, logger.String("stage", stage))
			return a.reject(ctx, stage,
				errors.ErrConnectionRejected(stage, msgLimiterUnavailable, http.StatusServiceUnavailable).WithCause(err))
		}
		if a.limiter.ResolvePolicy(rlContext, local).IsFailOpen() {
			a.logger.Warn(ctx, "connection limiter unavailable, admitting",
				logger.Error(err), logger.String("stage", stage))
			return nil
		}
		return a.reject(ctx, stage,
			errors.ErrConnectionRejected(stage, msgLimiterUnavailable, http.StatusServiceUnavailable).WithCause(err))
	}

	if !res.Allowed {
		retryAfter := res.RetryAfterSeconds(a.now())
		a.logger.Warn(ctx, "connection attempt rate limited",
			logger.String("stage", stage),
			logger.String("identifier", identifier),
			logger.Int64("retry_after", retryAfter),
		)
		return a.reject(ctx, stage,
			errors.ErrConnectionRejected(stage, exceededMsg, http.StatusTooManyRequests).
				WithMetadata("retry_after", retryAfter).
				WithMetadata("limit", res.Limit))
	}
	return nil
}

func (a *Admission) reject(ctx context.Context, stage string, err errors.AppError) errors.AppError {
	monitoring.RecordAsync(ctx, a.sink, a.logger, constants.MetricEventBlock, string(constants.RateLimitContextWebSocket), stage)
	return err
}
