package resource

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "stakeview").
	Namespace string

	// Subsystem is the metrics subsystem (default: "resource").
	Subsystem string

	// Buckets are the histogram buckets for fetch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the scheduler collectors. A nil *Metrics records nothing.
type Metrics struct {
	generations *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	stale       *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	inflight    *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the scheduler collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "stakeview",
		Subsystem: "resource",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "generations_total",
			Help:      "Fetch generations started.",
		}, []string{"resource"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "outcomes_total",
			Help:      "Fetch outcomes applied to resource state.",
		}, []string{"resource", "result"}),
		stale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "stale_discarded_total",
			Help:      "Fetch outcomes dropped because their generation was superseded or torn down.",
		}, []string{"resource"}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "skipped_total",
			Help:      "Starts where the factory had no work to do.",
		}, []string{"resource"}),
		inflight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "inflight",
			Help:      "Fetches currently running, including superseded ones.",
		}, []string{"resource"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "fetch_duration_seconds",
			Help:      "Fetch duration in seconds.",
			Buckets:   config.Buckets,
		}, []string{"resource"}),
	}
}

func (m *Metrics) generationStarted(name string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(name).Inc()
	m.inflight.WithLabelValues(name).Inc()
}

func (m *Metrics) fetchFinished(name string, d time.Duration) {
	if m == nil {
		return
	}
	m.inflight.WithLabelValues(name).Dec()
	m.duration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) outcome(name string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.outcomes.WithLabelValues(name, result).Inc()
}

func (m *Metrics) staleDiscarded(name string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(name).Inc()
}

func (m *Metrics) skip(name string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(name).Inc()
}
