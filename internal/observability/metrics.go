package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "airbot"

// Metrics holds the Prometheus collectors for API calls and report builds.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	APIRequests *prometheus.CounterVec   // labels: provider, outcome={success,error,circuit_open}
	APIDuration *prometheus.HistogramVec // labels: provider

	Reports           *prometheus.CounterVec // labels: source, outcome={success,error}
	SelectedLocations *prometheus.GaugeVec   // labels: source
}

func newMetrics() *Metrics {
	return &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Outbound sensor API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Outbound sensor API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Reports built by source and outcome.",
		}, []string{"source", "outcome"}),
		SelectedLocations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selected_locations",
			Help:      "Sensors or stations selected around the reference point in the last report.",
		}, []string{"source"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.APIRequests, m.APIDuration, m.Reports, m.SelectedLocations)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveRequest records one outbound API call.
func (m *Metrics) ObserveRequest(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(provider, outcome).Inc()
	m.APIDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveReport records one report build and how many locations it selected.
func (m *Metrics) ObserveReport(source, outcome string, selected int) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(source, outcome).Inc()
	if outcome == "success" {
		m.SelectedLocations.WithLabelValues(source).Set(float64(selected))
	}
}
