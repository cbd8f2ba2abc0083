package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	ratelimitadapter "github.com/turtacn/edugate/internal/adapter/ratelimit"
	appservice "github.com/turtacn/edugate/internal/application/service"
	"github.com/turtacn/edugate/internal/config"
	domainservice "github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/internal/infrastructure/crypto"
	"github.com/turtacn/edugate/internal/infrastructure/directory"
	"github.com/turtacn/edugate/internal/infrastructure/messaging"
	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
	"github.com/turtacn/edugate/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/edugate/internal/infrastructure/persistence/redis"
	"github.com/turtacn/edugate/internal/infrastructure/ratelimit"
	"github.com/turtacn/edugate/internal/interfaces/gateway"
	grpcinterfaces "github.com/turtacn/edugate/internal/interfaces/grpc"
	httpinterfaces "github.com/turtacn/edugate/internal/interfaces/http"
	"github.com/turtacn/edugate/internal/interfaces/http/handlers"
	"github.com/turtacn/edugate/pkg/logger"
)

func main() {
	configFile := flag.String("config", os.Getenv("EDUGATE_CONFIG_FILE"), "path to config.yaml")
	flag.Parse()

	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info", Format: "json"})
	if err != nil {
		log.Fatalf("Failed to create startup logger: %v", err)
	}

	// Load config
	loader := config.NewLoader(*configFile, startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loader, cfg, appLogger); err != nil {
		appLogger.Fatal(context.Background(), "edugate stopped with error", err)
	}
}

func run(ctx context.Context, loader *config.Loader, cfg *config.Config, appLogger logger.Logger) error {
	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		return err
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	// Initialize Redis
	redisConn, err := redis.NewConnection(cfg.Redis, appLogger)
	if err != nil {
		return err
	}
	defer redisConn.Close()

	sinks := []domainservice.MetricsSink{metrics}
	if cfg.Metrics.Redis {
		sinks = append(sinks, monitoring.NewRedisMetrics(redisConn.Client()))
	}
	sink := monitoring.NewMultiSink(sinks...)

	// Rate limit engine
	resolver := ratelimit.NewResolver(cfg.RateLimit.Default, cfg.RateLimit.Contexts)
	factory := ratelimit.NewFactory(redisConn.Client())
	rateLimitSvc := appservice.NewRateLimitAppService(resolver, factory, appLogger,
		appservice.WithMetricsSink(sink),
		appservice.WithCheckObserver(metrics),
		appservice.WithTracer(tracing.Tracer()),
	)
	loader.Watch(func(next *config.Config) {
		rateLimitSvc.Reload(next.RateLimit.Default, next.RateLimit.Contexts)
	})

	// User directory: Postgres when enabled, otherwise the static table
	healthChecks := map[string]handlers.HealthChecker{"redis": redisConn}
	var users domainservice.UserDirectory = directory.NewStatic(cfg.Gateway.StaticUsers)
	if cfg.Database.Enabled {
		db, err := postgres.NewDBConnection(ctx, &cfg.Database, appLogger)
		if err != nil {
			return err
		}
		defer db.Close()
		users = postgres.NewUserDirectory(db.Pool())
		healthChecks["database"] = db
	}
	users = directory.NewCached(users, cfg.Gateway.UserCacheTTL, metrics)

	verifier, err := crypto.NewHMACVerifier(cfg.JWT)
	if err != nil {
		return err
	}

	// Notifications
	var sender domainservice.NotificationSender = messaging.NewLogSender(appLogger)
	if cfg.Kafka.Enabled {
		kafkaSender := messaging.NewKafkaSender(cfg.Kafka, appLogger)
		defer kafkaSender.Close()
		sender = kafkaSender
	}
	notificationSvc := appservice.NewNotificationAppService(rateLimitSvc, sender, appLogger)

	admission := gateway.NewAdmission(rateLimitSvc, verifier, users, sink, cfg.Gateway, appLogger)

	router := httpinterfaces.NewRouter(cfg, appLogger, httpinterfaces.Dependencies{
		RateLimit:           rateLimitSvc,
		Verifier:            verifier,
		ThrottleStorage:     ratelimitadapter.NewRedisStorage(redisConn.Client(), appLogger),
		Metrics:             metrics,
		Gatherer:            registry,
		Tracer:              tracing.Tracer(),
		HealthHandler:       handlers.NewHealthHandler(healthChecks, appLogger),
		AdminHandler:        handlers.NewAdminHandler(rateLimitSvc, appLogger),
		GatewayHandler:      handlers.NewGatewayHandler(admission, nil, appLogger),
		NotificationHandler: handlers.NewNotificationHandler(notificationSvc),
	})

	// gRPC server
	chain := grpcinterfaces.NewInterceptorChain(appLogger, rateLimitSvc, verifier, admission)
	grpcServer := grpc.NewServer(chain.ServerOptions()...)
	healthpb.RegisterHealthServer(grpcServer, health.NewServer())
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(router.Start)
	g.Go(func() error {
		appLogger.Info(gctx, "Starting gRPC server", logger.String("address", cfg.Server.GRPCAddr()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		appLogger.Info(shutdownCtx, "Shutting down...")
		grpcServer.GracefulStop()
		if err := router.Stop(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "HTTP server forced to shutdown", err)
		}
		return tracing.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
