// Package prometheus exposes holdfast telemetry as Prometheus collectors.
package prometheus

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/metrics"
	"github.com/LavishGent/holdfast/internal/types"
)

var defaultBuckets = []float64{.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

type kind string

const (
	kindCounter   kind = "counter"
	kindHistogram kind = "histogram"
	kindGauge     kind = "gauge"
)

// family is one metric name. Its label names are fixed by the tags of the
// first sample; later samples fill missing labels with "" and drop unknown
// ones.
type family struct {
	labels    []string
	counter   *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	gauge     *prometheus.GaugeVec
}

// Sink implements types.TelemetrySink. Metric names are created on first
// use: "pool.alerts" becomes <namespace>_pool_alerts, and "key:value" tags
// become labels.
type Sink struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
	logger    *slog.Logger

	mu       sync.Mutex
	families map[string]*family
}

type Option func(*Sink)

// WithRegistry registers collectors with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Sink) {
		s.registry = reg
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// NewSink creates a sink. When Prometheus is disabled it returns a
// metrics.NoOpSink.
func NewSink(cfg config.PrometheusConfig, opts ...Option) types.TelemetrySink {
	if !cfg.Enabled {
		return metrics.NewNoOpSink()
	}
	return New(cfg, opts...)
}

func New(cfg config.PrometheusConfig, opts ...Option) *Sink {
	s := &Sink{
		namespace: sanitize(cfg.Namespace),
		buckets:   cfg.Buckets,
		logger:    slog.Default(),
		families:  make(map[string]*family),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if len(s.buckets) == 0 {
		s.buckets = defaultBuckets
	}
	s.logger = s.logger.With("component", "prometheus")
	return s
}

// Registry is the registry to expose through promhttp.HandlerFor.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Sink) Count(name string, value int64, tags ...string) {
	f, values := s.family(kindCounter, name, tags)
	if f == nil {
		return
	}
	if value < 0 {
		s.logger.Debug("Dropping negative count", "name", name, "value", value)
		return
	}
	f.counter.WithLabelValues(values...).Add(float64(value))
}

func (s *Sink) Histogram(name string, value float64, tags ...string) {
	f, values := s.family(kindHistogram, name, tags)
	if f == nil {
		return
	}
	f.histogram.WithLabelValues(values...).Observe(value)
}

func (s *Sink) Gauge(name string, value float64, tags ...string) {
	f, values := s.family(kindGauge, name, tags)
	if f == nil {
		return
	}
	f.gauge.WithLabelValues(values...).Set(value)
}

// Close does nothing; collectors stay registered so a final scrape still
// sees them.
func (s *Sink) Close() error {
	return nil
}

// family returns the family for name, registering it on first use, and the
// label values for tags in the family's label order. It returns nil when the
// name cannot be registered.
func (s *Sink) family(k kind, name string, tags []string) (*family, []string) {
	pairs := make(map[string]string, len(tags))
	for _, tag := range tags {
		key, value := metrics.SplitTag(tag)
		pairs[sanitize(key)] = value
	}

	key := string(k) + "/" + name

	s.mu.Lock()
	f, ok := s.families[key]
	if !ok {
		f = s.register(k, name, pairs)
		s.families[key] = f
	}
	s.mu.Unlock()

	if f == nil {
		return nil, nil
	}

	values := make([]string, len(f.labels))
	for i, label := range f.labels {
		values[i] = pairs[label]
		delete(pairs, label)
	}
	if len(pairs) > 0 {
		s.logger.Debug("Dropping labels not present on first sample", "name", name, "labels", pairs)
	}
	return f, values
}

// register must be called with mu held.
func (s *Sink) register(k kind, name string, pairs map[string]string) *family {
	labels := make([]string, 0, len(pairs))
	for label := range pairs {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	f := &family{labels: labels}
	metricName := sanitize(name)

	var c prometheus.Collector
	switch k {
	case kindCounter:
		f.counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      metricName + "_total",
			Help:      "holdfast counter " + name,
		}, labels)
		c = f.counter
	case kindHistogram:
		f.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      metricName,
			Help:      "holdfast histogram " + name,
			Buckets:   s.buckets,
		}, labels)
		c = f.histogram
	case kindGauge:
		f.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      metricName,
			Help:      "holdfast gauge " + name,
		}, labels)
		c = f.gauge
	}

	if err := s.registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			s.logger.Warn("Metric name already registered with another type", "name", name, "type", k)
		} else {
			s.logger.Warn("Failed to register metric", "name", name, "error", err)
		}
		return nil
	}
	return f
}

// sanitize maps a dotted holdfast name onto the Prometheus name alphabet.
func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var _ types.TelemetrySink = (*Sink)(nil)
