package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's operational metrics.
type Metrics struct {
	checks       *prometheus.CounterVec
	refreshes    prometheus.Counter
	readFailures *prometheus.CounterVec
	exposures    prometheus.Gauge
}

// NewMetrics creates and registers the orchestrator metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		checks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exposure_sync_checks_total",
			Help: "Check-for-new-exposures calls, by outcome.",
		}, []string{"outcome"}),
		refreshes: f.NewCounter(prometheus.CounterOpts{
			Name: "exposure_sync_refreshes_total",
			Help: "Exposure state refreshes written to the state store.",
		}),
		readFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "exposure_sync_read_failures_total",
			Help: "Read-path bridge failures resolved to empty values, by operation.",
		}, []string{"op"}),
		exposures: f.NewGauge(prometheus.GaugeOpts{
			Name: "exposure_sync_exposures",
			Help: "Number of exposures in the current snapshot.",
		}),
	}
}
