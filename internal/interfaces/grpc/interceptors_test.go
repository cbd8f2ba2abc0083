package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/edugate/internal/application/service"
	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/infrastructure/crypto"
	"github.com/turtacn/edugate/internal/infrastructure/directory"
	"github.com/turtacn/edugate/internal/infrastructure/ratelimit"
	"github.com/turtacn/edugate/internal/interfaces/gateway"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

type harness struct {
	client   healthpb.HealthClient
	verifier *crypto.HMACVerifier
	mr       *miniredis.Miniredis
}

func startServer(t *testing.T, httpPolicy models.Policy, gw config.GatewayConfig) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	resolver := ratelimit.NewResolver(
		models.Policy{Strategy: models.StrategyFixedWindow, Limit: 100, WindowSeconds: 60},
		map[string]models.Policy{"http": httpPolicy},
	)
	limiter := service.NewRateLimitAppService(resolver, ratelimit.NewFactory(rdb), logger.NewNoopLogger())
	verifier, err := crypto.NewHMACVerifier(config.JWTConfig{Secret: "grpc-secret"})
	require.NoError(t, err)
	admission := gateway.NewAdmission(limiter, verifier, directory.NewStatic(map[string]string{"alice": "school-1"}),
		nil, gw, logger.NewNoopLogger())

	chain := NewInterceptorChain(logger.NewNoopLogger(), limiter, verifier, admission)
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(chain.ServerOptions()...)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: healthpb.NewHealthClient(conn), verifier: verifier, mr: mr}
}

func TestUnaryRateLimitInterceptor(t *testing.T) {
	t.Run("keys verified callers by user", func(t *testing.T) {
		h := startServer(t, models.Policy{Limit: 2, WindowSeconds: 60}, config.GatewayConfig{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		token, err := h.verifier.Issue("u-7", "school-1", "", time.Minute)
		require.NoError(t, err)
		userCtx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		for i := 0; i < 2; i++ {
			_, err := h.client.Check(userCtx, &healthpb.HealthCheckRequest{})
			require.NoError(t, err)
		}

		var header metadata.MD
		_, err = h.client.Check(userCtx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
		assert.Equal(t, grpcCodes.ResourceExhausted, status.Code(err))
		assert.NotEmpty(t, header.Get("retry-after"))
		assert.True(t, h.mr.Exists("rate-limit:http:user:u-7"))

		// Anonymous callers are keyed by address and have their own budget.
		_, err = h.client.Check(ctx, &healthpb.HealthCheckRequest{})
		assert.NoError(t, err)
	})

	t.Run("unverified user metadata shares the address budget", func(t *testing.T) {
		h := startServer(t, models.Policy{Limit: 2, WindowSeconds: 60}, config.GatewayConfig{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		admitted := 0
		for i := 0; i < 10; i++ {
			callCtx := metadata.AppendToOutgoingContext(ctx,
				"x-user-id", fmt.Sprintf("forged-%d", i),
				"x-forwarded-for", "203.0.113.50",
			)
			if _, err := h.client.Check(callCtx, &healthpb.HealthCheckRequest{}); err == nil {
				admitted++
			} else {
				assert.Equal(t, grpcCodes.ResourceExhausted, status.Code(err))
			}
		}
		assert.Equal(t, 2, admitted)
		assert.True(t, h.mr.Exists("rate-limit:http:ip:203_0_113_50"))
		assert.False(t, h.mr.Exists("rate-limit:http:user:forged-0"))
	})

	t.Run("invalid bearer falls back to the address", func(t *testing.T) {
		h := startServer(t, models.Policy{Limit: 1, WindowSeconds: 60}, config.GatewayConfig{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		callCtx := metadata.AppendToOutgoingContext(ctx,
			"authorization", "Bearer not-a-token",
			"x-forwarded-for", "203.0.113.51",
		)
		_, err := h.client.Check(callCtx, &healthpb.HealthCheckRequest{})
		require.NoError(t, err)
		_, err = h.client.Check(callCtx, &healthpb.HealthCheckRequest{})
		assert.Equal(t, grpcCodes.ResourceExhausted, status.Code(err))
		assert.True(t, h.mr.Exists("rate-limit:http:ip:203_0_113_51"))
	})
}

func TestStreamAdmissionInterceptor(t *testing.T) {
	h := startServer(t, models.Policy{}, config.GatewayConfig{
		IPPolicy:   models.Policy{Limit: 3, WindowSeconds: 60},
		UserPolicy: models.Policy{Limit: 10, WindowSeconds: 60},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watch := func(md metadata.MD) error {
		sctx, scancel := context.WithCancel(metadata.NewOutgoingContext(ctx, md))
		defer scancel()
		stream, err := h.client.Watch(sctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		_, err = stream.Recv()
		return err
	}

	token, err := h.verifier.Issue("alice", "school-1", "", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, watch(metadata.Pairs("authorization", "Bearer "+token, "x-forwarded-for", "198.51.100.1")))

	err = watch(metadata.Pairs("x-forwarded-for", "198.51.100.1"))
	assert.Equal(t, grpcCodes.Unauthenticated, status.Code(err))

	assert.NoError(t, watch(metadata.Pairs("token", token, "x-forwarded-for", "198.51.100.1")))

	err = watch(metadata.Pairs("authorization", "Bearer "+token, "x-forwarded-for", "198.51.100.1"))
	assert.Equal(t, grpcCodes.ResourceExhausted, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "from this IP")
}

func TestToGRPCError(t *testing.T) {
	cases := []struct {
		err  error
		code grpcCodes.Code
	}{
		{errors.ErrInvalidRequest("x"), grpcCodes.InvalidArgument},
		{errors.ErrUnauthorized("x"), grpcCodes.Unauthenticated},
		{errors.ErrForbidden("x"), grpcCodes.PermissionDenied},
		{errors.ErrNotFound("x"), grpcCodes.NotFound},
		{errors.ErrRateLimitExceeded("http", 1, 1), grpcCodes.ResourceExhausted},
		{errors.ErrStoreUnavailable(nil), grpcCodes.Unavailable},
		{errors.ErrServerError("x"), grpcCodes.Internal},
		{status.Error(grpcCodes.Aborted, "kept"), grpcCodes.Aborted},
		{assert.AnError, grpcCodes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(ToGRPCError(tc.err)), tc.err.Error())
	}
}
