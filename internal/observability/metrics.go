package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weatheralerts"

// Poll and probe outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeStatus  = "status"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Metrics holds the Prometheus collectors for probing, polling, and sinks.
type Metrics struct {
	Polls        *prometheus.CounterVec   // labels: feed, outcome={success,status,timeout,error}
	PollDuration *prometheus.HistogramVec // labels: feed
	ActiveAlerts *prometheus.GaugeVec     // labels: feed
	Available    *prometheus.GaugeVec     // labels: feed
	Probes       *prometheus.CounterVec   // labels: outcome={success,invalid,timeout,error}
	SinkErrors   *prometheus.CounterVec   // labels: sink={history,kafka}
	SkippedTicks prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Polls,
		m.PollDuration,
		m.ActiveAlerts,
		m.Available,
		m.Probes,
		m.SinkErrors,
		m.SkippedTicks,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Alert feed polls by feed and outcome.",
		}, []string{"feed", "outcome"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of a complete poll, including decoding and normalization.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Number of active alerts in the last successful poll.",
		}, []string{"feed"}),
		Available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_available",
			Help:      "1 when the last poll succeeded, 0 otherwise.",
		}, []string{"feed"}),
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Setup feed probes by outcome.",
		}, []string{"outcome"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Snapshot sink failures by sink.",
		}, []string{"sink"}),
		SkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_ticks_total",
			Help:      "Scheduled polls skipped because the previous poll was still running.",
		}),
	}
}
