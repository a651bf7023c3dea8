package poller

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics manages Prometheus instrumentation for the poll engine.
type Metrics struct {
	sweepsTotal   prometheus.Counter
	hostErrors    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	liveBackends  *prometheus.GaugeVec
	matchedPairs  *prometheus.GaugeVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton poll metrics instance, registering the
// collectors on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics(prometheus.DefaultRegisterer)
	})
	return metricsInstance
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshmon_sweeps_total",
			Help: "Number of poll sweeps started",
		}),
		hostErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshmon_host_errors_total",
			Help: "Failed fetch-and-correlate passes by host and error kind",
		}, []string{"host", "kind"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshmon_fetch_duration_seconds",
			Help:    "Duration of admin endpoint fetches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"host"}),
		liveBackends: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshmon_live_backends",
			Help: "Backends observed on the last successful pass, by host",
		}, []string{"host"}),
		matchedPairs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshmon_matched_pairs",
			Help: "Backend/task pairs with both sides present on the last successful pass, by host",
		}, []string{"host"}),
	}
	reg.MustRegister(m.sweepsTotal, m.hostErrors, m.fetchDuration, m.liveBackends, m.matchedPairs)
	return m
}
