package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the cases run by a pool.
type Metrics struct {
	Started   prometheus.Counter
	Completed prometheus.Counter
	Failed    prometheus.Counter
	Duration  prometheus.Histogram
}

// NewMetrics registers the case metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounter(prometheus.CounterOpts{
			Namespace: "r2s",
			Subsystem: "cases",
			Name:      "started_total",
			Help:      "Cases started",
		}),
		Completed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "r2s",
			Subsystem: "cases",
			Name:      "completed_total",
			Help:      "Cases finished without error",
		}),
		Failed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "r2s",
			Subsystem: "cases",
			Name:      "failed_total",
			Help:      "Cases finished with an error",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "r2s",
			Subsystem: "cases",
			Name:      "duration_seconds",
			Help:      "Wall time of a case",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
}

func (m *Metrics) started() {
	if m != nil {
		m.Started.Inc()
	}
}

func (m *Metrics) finished(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Duration.Observe(d.Seconds())
	if err != nil {
		m.Failed.Inc()
	} else {
		m.Completed.Inc()
	}
}
