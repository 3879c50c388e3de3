package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/go-pulse/pulse/pkg/pulse"
)

// MetricsConfig configures the Prometheus instrumentation.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pulse").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for effect run duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus instrumentation.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the effect-duration histogram buckets.
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

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "pulse",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// graphMetrics implements pulse.Instrumentation on Prometheus collectors.
type graphMetrics struct {
	signalWrites   prometheus.Counter
	memoRecomputes prometheus.Counter
	effectRuns     prometheus.Counter
	effectDuration prometheus.Histogram
	flushes        prometheus.Counter
	ownerDisposals prometheus.Counter
}

// Metrics creates Prometheus-backed graph instrumentation. Collectors are
// registered on the configured registry at creation; creating two Metrics
// instances against the same registry panics the way duplicate promauto
// registration always does, so create it once at startup.
//
//	pulse.SetInstrumentation(instrument.Metrics(
//	    instrument.WithNamespace("myapp"),
//	))
func Metrics(opts ...MetricsOption) pulse.Instrumentation {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &graphMetrics{
		signalWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signal_writes_total",
			Help:        "Total number of signal writes",
			ConstLabels: config.ConstLabels,
		}),
		memoRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "memo_recomputes_total",
			Help:        "Total number of memo recomputations",
			ConstLabels: config.ConstLabels,
		}),
		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect body executions",
			ConstLabels: config.ConstLabels,
		}),
		effectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_run_duration_seconds",
			Help:        "Effect body execution duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_flushes_total",
			Help:        "Total number of pending-effect queue drains",
			ConstLabels: config.ConstLabels,
		}),
		ownerDisposals: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "owner_disposals_total",
			Help:        "Total number of owner disposals",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *graphMetrics) SignalWrite() {
	m.signalWrites.Inc()
}

func (m *graphMetrics) MemoRecompute() {
	m.memoRecomputes.Inc()
}

func (m *graphMetrics) EffectRun(run func()) {
	m.effectRuns.Inc()
	start := time.Now()
	defer func() {
		m.effectDuration.Observe(time.Since(start).Seconds())
	}()
	run()
}

func (m *graphMetrics) Flush(run func()) {
	m.flushes.Inc()
	run()
}

func (m *graphMetrics) OwnerDisposed() {
	m.ownerDisposals.Inc()
}
