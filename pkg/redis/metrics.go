package redis

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Redis request collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the Redis collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redis_requests_total",
				Help: "Total number of Redis requests by method.",
			},
			[]string{"method"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redis_errors_total",
				Help: "Total number of Redis errors by method.",
			},
			[]string{"method"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redis_request_duration_seconds",
				Help:    "Redis request latency distributions.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

func (m *Metrics) observe(method string, start time.Time, err error) {
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	m.requests.WithLabelValues(method).Inc()
	if err != nil {
		m.errors.WithLabelValues(method).Inc()
	}
}

// MetricsClient wraps Client to collect Prometheus metrics.
type MetricsClient struct {
	next    *Client
	metrics *Metrics
}

// NewMetricsClient creates an instrumented Redis client.
func NewMetricsClient(next *Client, metrics *Metrics) *MetricsClient {
	return &MetricsClient{next: next, metrics: metrics}
}

// Get instruments Client.Get.
func (m *MetricsClient) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	result, err := m.next.Get(ctx, key)
	m.metrics.observe("get", start, err)
	return result, err
}

// Set instruments Client.Set.
func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := m.next.Set(ctx, key, value, ttl)
	m.metrics.observe("set", start, err)
	return err
}

// Delete instruments Client.Delete.
func (m *MetricsClient) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.next.Delete(ctx, key)
	m.metrics.observe("delete", start, err)
	return err
}

// Ping instruments Client.Ping.
func (m *MetricsClient) Ping(ctx context.Context) error {
	start := time.Now()
	err := m.next.Ping(ctx)
	m.metrics.observe("ping", start, err)
	return err
}

// Close closes underlying client.
func (m *MetricsClient) Close() error {
	return m.next.Close()
}
