package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes pipeline counters for scraping. All metrics live under the
// meetsync namespace.
type Metrics struct {
	meetingsTotal    *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	processedEntries prometheus.Gauge
}

// NewMetrics creates the pipeline metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		meetingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meetsync",
				Subsystem: "pipeline",
				Name:      "meetings_total",
				Help:      "Meetings handled by the pipeline, by outcome",
			},
			[]string{"outcome"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meetsync",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Completed pipeline runs, by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "meetsync",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of one pipeline run",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		processedEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "meetsync",
				Subsystem: "pipeline",
				Name:      "processed_entries",
				Help:      "Total meetings recorded in the idempotency ledger",
			},
		),
	}
}

// Register registers all pipeline metrics with the given registry.
// Double registration is tolerated so repeated wiring in tests is harmless.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.meetingsTotal, m.runsTotal, m.runDuration, m.processedEntries,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

func (m *Metrics) observeMeeting(outcome string) {
	if m == nil {
		return
	}
	m.meetingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRun(status string, seconds float64, ledgerSize int) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
	m.processedEntries.Set(float64(ledgerSize))
}
