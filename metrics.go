package devproxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the intercepting transport.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	redirectDuration *prometheus.HistogramVec
	resolveAttempts  prometheus.Counter
	resolveErrors    prometheus.Counter
	resolveDuration  prometheus.Histogram
	activeMapping    prometheus.Gauge
	configuredHosts  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fhproxy",
			Name:      "requests_total",
			Help:      "Requests seen by the intercepting transport, by decision mode.",
		}, []string{"mode"}),

		redirectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fhproxy",
			Name:      "redirect_duration_seconds",
			Help:      "Round-trip duration of redirected requests.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"mode", "status"}),

		resolveAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fhproxy",
			Name:      "resolve_attempts_total",
			Help:      "Platform host lookup attempts.",
		}),

		resolveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fhproxy",
			Name:      "resolve_errors_total",
			Help:      "Failed platform host lookups.",
		}),

		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fhproxy",
			Name:      "resolve_duration_seconds",
			Help:      "Platform host lookup duration.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		activeMapping: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fhproxy",
			Name:      "mapping_active",
			Help:      "1 when a mapping is fully established, 0 otherwise.",
		}),

		configuredHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fhproxy",
			Name:      "configured_hosts",
			Help:      "Number of hostnames configured for redirection.",
		}),

		registry: reg,
	}

	reg.MustRegister(
		m.requestsTotal,
		m.redirectDuration,
		m.resolveAttempts,
		m.resolveErrors,
		m.resolveDuration,
		m.activeMapping,
		m.configuredHosts,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a transport decision.
func (m *Metrics) RecordRequest(mode string) {
	m.requestsTotal.WithLabelValues(mode).Inc()
}

// RecordRedirect records the duration of a completed redirected round trip.
func (m *Metrics) RecordRedirect(mode string, statusCode int, duration time.Duration) {
	m.redirectDuration.WithLabelValues(mode, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// RecordResolve records a platform host lookup.
func (m *Metrics) RecordResolve(duration time.Duration, err error) {
	m.resolveAttempts.Inc()
	m.resolveDuration.Observe(duration.Seconds())
	if err != nil {
		m.resolveErrors.Inc()
	}
}

// SetActive sets the mapping-active gauge.
func (m *Metrics) SetActive(active bool) {
	if active {
		m.activeMapping.Set(1)
	} else {
		m.activeMapping.Set(0)
	}
}

// SetHostCount sets the configured host gauge.
func (m *Metrics) SetHostCount(count int) {
	m.configuredHosts.Set(float64(count))
}
