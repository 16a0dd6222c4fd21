// Package metrics provides Prometheus instrumentation for the gateway.
//
// Metrics:
//   - ganymede_requests_total: completed chat requests by model and status
//   - ganymede_active_requests: requests currently in flight
//   - ganymede_credentials: pooled credentials by lifecycle status
//   - ganymede_reclaimed_total: rows removed by the reclamation sweep
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/config"
)

// Collector owns the metric registry and all gateway metrics.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	activeRequests prometheus.Gauge
	credentials    *prometheus.GaugeVec
	reclaimedTotal *prometheus.CounterVec
}

// NewCollector creates and registers all gateway metrics. A nil registry
// creates a fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of chat completion requests processed",
			},
			[]string{"model", "status"},
		),

		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "active_requests",
				Help:      "Number of chat completion requests currently in flight",
			},
		),

		credentials: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "credentials",
				Help:      "Number of pooled credentials by lifecycle status",
			},
			[]string{"status"},
		),

		reclaimedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "reclaimed_total",
				Help:      "Total rows removed by the reclamation sweep",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.activeRequests,
		c.credentials,
		c.reclaimedTotal,
	)

	return c
}

// RequestStarted marks a request as admitted.
func (c *Collector) RequestStarted() {
	c.activeRequests.Inc()
}

// RequestFinished records the outcome of a completed request.
// Status is one of "success", "failed", "rejected".
func (c *Collector) RequestFinished(model, status string) {
	c.activeRequests.Dec()
	c.requestsTotal.WithLabelValues(model, status).Inc()
}

// RequestRejected records a request rejected before admission (no log row
// was written, so the active gauge was never incremented).
func (c *Collector) RequestRejected(model string) {
	c.requestsTotal.WithLabelValues(model, "rejected").Inc()
}

// SetCredentialCount sets the pool gauge for one lifecycle status.
func (c *Collector) SetCredentialCount(status string, n int) {
	c.credentials.WithLabelValues(status).Set(float64(n))
}

// RecordReclaimed records rows removed by a reclamation sweep.
func (c *Collector) RecordReclaimed(logs, credentials int64) {
	c.reclaimedTotal.WithLabelValues("logs").Add(float64(logs))
	c.reclaimedTotal.WithLabelValues("credentials").Add(float64(credentials))
}

// Registry returns the underlying prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
