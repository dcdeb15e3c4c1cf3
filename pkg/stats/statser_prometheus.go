package stats

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusStatser is a Statser that exposes internal metrics for scraping
// by Prometheus. Collectors are created on first use of a name.
type PrometheusStatser struct {
	namespace string
	registry  *prometheus.Registry

	mu       sync.Mutex
	gauges   map[string]prometheus.Gauge
	counters map[string]prometheus.Counter
}

// NewPrometheusStatser creates a PrometheusStatser with its own registry.
func NewPrometheusStatser(namespace string) *PrometheusStatser {
	return &PrometheusStatser{
		namespace: sanitize(namespace),
		registry:  prometheus.NewRegistry(),
		gauges:    make(map[string]prometheus.Gauge),
		counters:  make(map[string]prometheus.Counter),
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (ps *PrometheusStatser) Handler() http.Handler {
	return promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (ps *PrometheusStatser) Gatherer() prometheus.Gatherer {
	return ps.registry
}

// Gauge sets a gauge metric
func (ps *PrometheusStatser) Gauge(name string, value float64) {
	ps.gauge(name).Set(value)
}

// Count adds to a counter metric. Prometheus counters are monotonic, negative amounts are ignored.
func (ps *PrometheusStatser) Count(name string, amount float64) {
	if amount < 0 {
		return
	}
	ps.counter(name).Add(amount)
}

// Increment adds 1 to a counter metric
func (ps *PrometheusStatser) Increment(name string) {
	ps.counter(name).Inc()
}

func (ps *PrometheusStatser) gauge(name string) prometheus.Gauge {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	g, ok := ps.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ps.namespace,
			Name:      sanitize(name),
			Help:      "Internal gauge " + name,
		})
		ps.registry.MustRegister(g)
		ps.gauges[name] = g
	}
	return g
}

func (ps *PrometheusStatser) counter(name string) prometheus.Counter {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	c, ok := ps.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ps.namespace,
			Name:      sanitize(name) + "_total",
			Help:      "Internal counter " + name,
		})
		ps.registry.MustRegister(c)
		ps.counters[name] = c
	}
	return c
}

// sanitize maps a dotted statsd style name onto the Prometheus name alphabet.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
