package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	ratelimitadapter "github.com/turtacn/edugate/internal/adapter/ratelimit"
	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
	"github.com/turtacn/edugate/internal/interfaces/http/handlers"
	"github.com/turtacn/edugate/internal/interfaces/http/middleware"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

const (
	adminThrottleLimit  = 30
	adminThrottleWindow = time.Minute
)

// Dependencies 路由依赖
type Dependencies struct {
	RateLimit           service.RateLimitService
	Verifier            service.TokenVerifier
	ThrottleStorage     ratelimitadapter.Storage
	Metrics             *monitoring.Metrics
	Gatherer            prometheus.Gatherer
	Tracer              trace.Tracer
	HealthHandler       *handlers.HealthHandler
	AdminHandler        *handlers.AdminHandler
	GatewayHandler      *handlers.GatewayHandler
	NotificationHandler *handlers.NotificationHandler
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger logger.Logger
	deps   Dependencies
	server *http.Server
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, log logger.Logger, deps Dependencies) *Router {
	r := &Router{
		engine: gin.New(),
		config: cfg,
		logger: log.WithComponent("http"),
		deps:   deps,
	}
	r.setupRoutes()
	return r
}

// Engine returns the configured gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.AccessLog(r.logger))
	if r.deps.Tracer != nil && r.deps.Metrics != nil {
		r.engine.Use(middleware.ObservabilityMiddleware(r.deps.Tracer, r.deps.Metrics.HTTPRequests, r.deps.Metrics.HTTPDuration))
	}

	// CORS 配置
	if len(r.config.Server.CORSOrigins) > 0 {
		r.engine.Use(cors.New(cors.Config{
			AllowOrigins:     r.config.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID},
			ExposeHeaders:    []string{constants.HeaderRequestID, constants.HeaderRateLimitLimit, constants.HeaderRateLimitRemaining, constants.HeaderRateLimitReset, constants.HeaderRetryAfter},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 健康检查路由（不限流，不需要认证）
	r.engine.GET("/health", r.deps.HealthHandler.HealthCheck)
	r.engine.GET("/ready", r.deps.HealthHandler.ReadinessCheck)
	r.engine.GET("/live", r.deps.HealthHandler.LivenessCheck)

	if r.config.Metrics.Prometheus && r.deps.Gatherer != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if r.config.Server.EnablePprof {
		pprof.Register(r.engine)
	}

	// 连接握手：准入自带 IP 与用户两阶段限流
	if r.deps.GatewayHandler != nil {
		r.engine.GET("/ws", r.deps.GatewayHandler.Handshake)
	}

	// 管理接口
	if r.deps.AdminHandler != nil {
		admin := r.engine.Group("/admin")
		admin.Use(
			middleware.Throttle(r.deps.ThrottleStorage, adminThrottleLimit, adminThrottleWindow, r.logger),
			middleware.AdminToken(r.config.Server.AdminToken),
		)
		{
			admin.POST("/rate-limits/reset", r.deps.AdminHandler.ResetRateLimit)
			admin.GET("/rate-limits/count", r.deps.AdminHandler.GetRateLimitCount)
			admin.GET("/rate-limits/policy", r.deps.AdminHandler.GetPolicy)
		}
	}

	// API 路由组
	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.OptionalJWT(r.deps.Verifier, r.logger))
	v1.Use(middleware.RateLimitMiddleware(r.deps.RateLimit, &r.config.RateLimit, r.logger))
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		if r.deps.NotificationHandler != nil {
			v1.POST("/notifications", middleware.RequireJWT(r.deps.Verifier, r.logger), r.deps.NotificationHandler.Send)
		}
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errors.ToErrorResponse(errors.ErrNotFound("the requested resource was not found")))
	})
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (r *Router) Start() error {
	r.server = &http.Server{
		Addr:           r.config.Server.HTTPAddr(),
		Handler:        r.engine,
		ReadTimeout:    r.config.Server.ReadTimeout,
		WriteTimeout:   r.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", r.server.Addr))
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}
