package grpc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/internal/interfaces/gateway"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
	"github.com/turtacn/edugate/pkg/utils"
)

// Admitter admits a persistent connection attempt.
type Admitter interface {
	Admit(ctx context.Context, attempt gateway.Attempt) (*models.Identity, error)
}

// InterceptorChain 拦截器链
type InterceptorChain struct {
	log              logger.Logger
	rateLimitService service.RateLimitService
	verifier         service.TokenVerifier
	admission        Admitter
}

// NewInterceptorChain 创建拦截器链。admission 为 nil 时流式调用不做准入；
// verifier 为 nil 时一元调用只按客户端 IP 限流。
func NewInterceptorChain(
	log logger.Logger,
	rateLimitService service.RateLimitService,
	verifier service.TokenVerifier,
	admission Admitter,
) *InterceptorChain {
	return &InterceptorChain{
		log:              log.WithComponent("grpc"),
		rateLimitService: rateLimitService,
		verifier:         verifier,
		admission:        admission,
	}
}

// UnaryRecoveryInterceptor 恢复拦截器(捕获 panic)
func (ic *InterceptorChain) UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				ic.log.Error(ctx, "gRPC handler panic recovered", fmt.Errorf("%v", r),
					logger.String("method", info.FullMethod),
				)
				err = status.Error(grpcCodes.Internal, "internal server error")
			}
		}()

		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor 日志拦截器
func (ic *InterceptorChain) UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()

		resp, err := handler(ctx, req)

		ic.log.Info(ctx, "gRPC request completed",
			logger.String("method", info.FullMethod),
			logger.String("client_ip", clientIP(ctx)),
			logger.Int64("duration_ms", time.Since(startTime).Milliseconds()),
			logger.String("status", status.Code(err).String()),
		)

		return resp, err
	}
}

// UnaryRateLimitInterceptor 限流拦截器，使用 http 上下文策略，按已验证的用户 > 客户端 IP 计数。
func (ic *InterceptorChain) UnaryRateLimitInterceptor() grpc.UnaryServerInterceptor {
	rlContext := string(constants.RateLimitContextHTTP)

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		identifier := ic.callerIdentity(ctx)
		key := ic.rateLimitService.BuildKey(rlContext, identifier)
		res, err := ic.rateLimitService.CheckLimit(ctx, key, 0, 0, models.CheckOptions{
			Context:    rlContext,
			Identifier: identifier,
		})
		if err != nil {
			ic.log.Error(ctx, "rate limit check failed", err,
				logger.String("identifier", identifier),
				logger.String("method", info.FullMethod),
			)
			return handler(ctx, req)
		}

		if !res.Allowed {
			retryAfter := res.RetryAfterSeconds(time.Now())
			ic.log.Warn(ctx, "rate limit exceeded",
				logger.String("identifier", identifier),
				logger.String("method", info.FullMethod),
			)
			_ = grpc.SetHeader(ctx, metadata.Pairs(
				"retry-after", strconv.FormatInt(retryAfter, 10),
				"x-ratelimit-limit", strconv.Itoa(res.Limit),
			))
			return nil, ToGRPCError(errors.ErrRateLimitExceeded(rlContext, res.Limit, retryAfter))
		}

		return handler(ctx, req)
	}
}

// callerIdentity keys by the verified token subject, else by client address.
// Unverified metadata never selects the budget.
func (ic *InterceptorChain) callerIdentity(ctx context.Context) string {
	if ic.verifier != nil {
		if tok := bearerToken(ctx); tok != "" {
			claims, err := ic.verifier.Verify(ctx, tok)
			if err == nil && claims.UserID() != "" {
				return constants.GatewayUserNamespace + constants.RateLimitKeySeparator + claims.UserID()
			}
			ic.log.Debug(ctx, "ignoring unverifiable token for rate limiting", logger.Error(err))
		}
	}
	return constants.GatewayIPNamespace + constants.RateLimitKeySeparator + clientIP(ctx)
}

// UnaryErrorInterceptor 错误转换拦截器(将领域错误转换为 gRPC 状态码)
func (ic *InterceptorChain) UnaryErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		return resp, ToGRPCError(err)
	}
}

// StreamAdmissionInterceptor runs connection admission once per stream. The
// admitted identity is available to handlers through IdentityFromContext.
func (ic *InterceptorChain) StreamAdmissionInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if ic.admission == nil {
			return handler(srv, ss)
		}

		ctx := ss.Context()
		identity, err := ic.admission.Admit(ctx, gateway.Attempt{
			ClientIP: clientIP(ctx),
			Token:    bearerToken(ctx),
		})
		if err != nil {
			ic.log.Info(ctx, "stream rejected",
				logger.String("method", info.FullMethod),
				logger.String("reason", err.Error()),
			)
			return ToGRPCError(err)
		}

		return handler(srv, &admittedStream{
			ServerStream: ss,
			ctx:          context.WithValue(ctx, constants.ContextKeyIdentity, identity),
		})
	}
}

// ChainUnaryInterceptors 链式调用所有一元拦截器
func (ic *InterceptorChain) ChainUnaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		ic.UnaryRecoveryInterceptor(),  // 1. 恢复 panic
		ic.UnaryLoggingInterceptor(),   // 2. 日志
		ic.UnaryRateLimitInterceptor(), // 3. 限流
		ic.UnaryErrorInterceptor(),     // 4. 错误转换
	)
}

// ServerOptions returns the unary chain plus stream admission.
func (ic *InterceptorChain) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		ic.ChainUnaryInterceptors(),
		grpc.ChainStreamInterceptor(ic.StreamAdmissionInterceptor()),
	}
}

// IdentityFromContext returns the identity admitted for the current stream.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(constants.ContextKeyIdentity).(*models.Identity)
	return id, ok
}

// ToGRPCError 将领域错误转换为 gRPC 错误
func ToGRPCError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return status.Error(grpcCodes.Internal, "internal server error")
	}

	switch appErr.HTTPStatus() {
	case http.StatusNotFound:
		return status.Error(grpcCodes.NotFound, appErr.Error())
	case http.StatusBadRequest:
		return status.Error(grpcCodes.InvalidArgument, appErr.Error())
	case http.StatusUnauthorized:
		return status.Error(grpcCodes.Unauthenticated, appErr.Error())
	case http.StatusForbidden:
		return status.Error(grpcCodes.PermissionDenied, appErr.Error())
	case http.StatusTooManyRequests:
		return status.Error(grpcCodes.ResourceExhausted, appErr.Error())
	case http.StatusServiceUnavailable:
		return status.Error(grpcCodes.Unavailable, appErr.Error())
	default:
		return status.Error(grpcCodes.Internal, "internal server error")
	}
}

type admittedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *admittedStream) Context() context.Context {
	return s.ctx
}

// clientIP applies the HTTP forwarding chain to incoming metadata, falling back
// to the transport peer address.
func clientIP(ctx context.Context) string {
	h := http.Header{}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		for _, name := range []string{constants.HeaderForwardedFor, constants.HeaderRealIP, constants.HeaderConnectingIP} {
			if vals := md.Get(name); len(vals) > 0 {
				h.Set(name, vals[0])
			}
		}
	}
	var remote string
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		remote = p.Addr.String()
	}
	return utils.ClientIPFromHeaders(h, remote)
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("authorization"); len(vals) > 0 {
		if tok := extractBearer(vals[0]); tok != "" {
			return tok
		}
	}
	if vals := md.Get(constants.QueryParamToken); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func extractBearer(v string) string {
	const prefix = "bearer "
	if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return v[len(prefix):]
	}
	return ""
}
