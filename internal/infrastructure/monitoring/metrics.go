package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/edugate/pkg/constants"
)

// Metrics manages the Prometheus metrics of the admission engine.
type Metrics struct {
	AdmissionEvents *prometheus.CounterVec
	CheckLatency    *prometheus.HistogramVec
	StoreFailures   *prometheus.CounterVec
	UserCacheAccess *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AdmissionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_admission_events_total",
				Help: "Total number of admission decisions by event, context and stage.",
			},
			[]string{"event", "context", "stage"},
		),
		CheckLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edugate_rate_limit_check_seconds",
				Help:    "Latency of rate limit checks against the shared store.",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"strategy", "context"},
		),
		StoreFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_rate_limit_store_failures_total",
				Help: "Checks resolved by the fail-open/fail-closed policy.",
			},
			[]string{"context", "fail_open"},
		),
		UserCacheAccess: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_user_cache_access_total",
				Help: "User directory cache lookups by result.",
			},
			[]string{"result"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edugate_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edugate_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Record implements service.MetricsSink.
func (m *Metrics) Record(_ context.Context, event constants.MetricEvent, rlContext, stage string) error {
	m.AdmissionEvents.WithLabelValues(string(event), rlContext, stage).Inc()
	return nil
}

// ObserveCheck records the latency of one strategy check.
func (m *Metrics) ObserveCheck(strategy, rlContext string, d time.Duration) {
	m.CheckLatency.WithLabelValues(strategy, rlContext).Observe(d.Seconds())
}

// RecordStoreFailure counts a check that could not reach the store.
func (m *Metrics) RecordStoreFailure(rlContext string, failOpen bool) {
	label := "false"
	if failOpen {
		label = "true"
	}
	m.StoreFailures.WithLabelValues(rlContext, label).Inc()
}

// RecordCacheAccess counts a user directory cache hit or miss.
func (m *Metrics) RecordCacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.UserCacheAccess.WithLabelValues(result).Inc()
}
