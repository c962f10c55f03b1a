package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "citizen_alerts"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Fetch metrics.
	FetchesTotal      *prometheus.CounterVec // labels: outcome={success,error,stale}
	FetchDuration     prometheus.Histogram
	IncidentsReceived prometheus.Counter
	IncidentsSkipped  *prometheus.CounterVec // labels: reason
	AlertsCurrent     prometheus.Gauge
	RefreshRunning    prometheus.Gauge

	// Report submission metrics.
	ReportsSubmitted *prometheus.CounterVec // labels: outcome={success,error,invalid}

	// Backend gateway metrics.
	BackendDuration *prometheus.HistogramVec // labels: endpoint={incidents,reports}

	// Publishing metrics.
	AlertsPublished prometheus.Counter
	PublishErrors   prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Incident fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a fetch-normalize-replace cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		IncidentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_received_total",
			Help:      "Raw incident records returned by the backend.",
		}),
		IncidentsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_skipped_total",
			Help:      "Raw incident records dropped during normalization, by reason.",
		}, []string{"reason"}),
		AlertsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_current",
			Help:      "Alerts currently held in the store.",
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_running",
			Help:      "1 when the periodic refresh loop is active, 0 otherwise.",
		}),
		ReportsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_submitted_total",
			Help:      "User report submissions by outcome.",
		}, []string{"outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Incidents service request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Alerts written to the Kafka alerts topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchesTotal,
		m.FetchDuration,
		m.IncidentsReceived,
		m.IncidentsSkipped,
		m.AlertsCurrent,
		m.RefreshRunning,
		m.ReportsSubmitted,
		m.BackendDuration,
		m.AlertsPublished,
		m.PublishErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
