package acquire

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is the prometheus subsystem every ledger acquisition
// metric is registered under.
const MetricsSubsystem = "ledger_acquire"

// Metrics holds the counters and gauges a Registry and its
// LedgerAcquires report through.
type Metrics struct {
	HeadersAcquired metrics.Counter
	NodesAcquired   metrics.Counter
	RequestsSent    metrics.Counter
	Completed       metrics.Counter
	Failed          metrics.Counter
	InFlight        metrics.Gauge
}

// PrometheusMetrics returns Metrics backed by real prometheus
// collectors registered under namespace.
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		HeadersAcquired: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "headers_acquired_total",
			Help:      "Number of ledger headers accepted from peers.",
		}, labels).With(labelsAndValues...),
		NodesAcquired: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "nodes_acquired_total",
			Help:      "Number of SHAMap nodes accepted from peers.",
		}, labels).With(labelsAndValues...),
		RequestsSent: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "requests_sent_total",
			Help:      "Number of GetLedger requests sent to peers.",
		}, labels).With(labelsAndValues...),
		Completed: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "completed_total",
			Help:      "Number of ledger acquisitions that completed successfully.",
		}, labels).With(labelsAndValues...),
		Failed: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "failed_total",
			Help:      "Number of ledger acquisitions that gave up without completing.",
		}, labels).With(labelsAndValues...),
		InFlight: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "in_flight",
			Help:      "Number of ledger acquisitions currently in progress.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns Metrics that discard everything, for tests and for
// nodes that don't want a prometheus dependency wired up.
func NopMetrics() *Metrics {
	return &Metrics{
		HeadersAcquired: discard.NewCounter(),
		NodesAcquired:   discard.NewCounter(),
		RequestsSent:    discard.NewCounter(),
		Completed:       discard.NewCounter(),
		Failed:          discard.NewCounter(),
		InFlight:        discard.NewGauge(),
	}
}
