package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/utils"
)

// unmatchedRoute labels requests that hit no route template.
const unmatchedRoute = "not_found"

// ObservabilityMiddleware wraps each request in a span and records request
// totals and latency by route template. The admission outcome written by the
// rate limit guard (limit, remaining, retry hint) is copied onto the span, so
// a trace shows whether the request spent budget or was turned away.
// ObservabilityMiddleware 为每个请求创建 Span 并记录指标，同时把限流结果写入 Span。
func ObservabilityMiddleware(
	tracer trace.Tracer,
	httpRequestsTotal *prometheus.CounterVec,
	httpRequestDuration *prometheus.HistogramVec,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.client_ip", utils.ClientIP(c.Request)),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		code := c.Writer.Status()
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(code)).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())

		span.SetAttributes(attribute.Int("http.status_code", code))
		span.SetAttributes(admissionAttributes(c.Writer.Header(), code)...)
		if code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(code))
		}
	}
}

// admissionAttributes reads the guard's response headers. Requests that were
// never checked carry no ratelimit.* attributes.
func admissionAttributes(h http.Header, code int) []attribute.KeyValue {
	limit, err := strconv.Atoi(h.Get(constants.HeaderRateLimitLimit))
	if err != nil {
		return nil
	}

	attrs := []attribute.KeyValue{
		attribute.Int("ratelimit.limit", limit),
		attribute.Bool("ratelimit.blocked", code == http.StatusTooManyRequests),
	}
	if remaining, err := strconv.Atoi(h.Get(constants.HeaderRateLimitRemaining)); err == nil {
		attrs = append(attrs, attribute.Int("ratelimit.remaining", remaining))
	}
	if retry, err := strconv.ParseInt(h.Get(constants.HeaderRetryAfter), 10, 64); err == nil {
		attrs = append(attrs, attribute.Int64("ratelimit.retry_after_seconds", retry))
	}
	return attrs
}
