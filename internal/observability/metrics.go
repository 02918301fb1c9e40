package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the fetch engine's Prometheus collectors.
type Metrics struct {
	Duration *prometheus.HistogramVec
	Rows     prometheus.Histogram
	Errors   *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace and registers them
// with reg. A nil reg leaves them unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of narrow compile and fetch calls.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		Rows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_rows",
			Help:      "Rows returned per fetch after post-processing.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches by error code.",
		}, []string{"code"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.Duration, m.Rows, m.Errors} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveDuration records how long an operation took.
func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRows records the size of a returned page.
func (m *Metrics) ObserveRows(n int) {
	if m == nil {
		return
	}
	m.Rows.Observe(float64(n))
}

// RecordError counts a failure. An empty code is recorded as "storage".
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "storage"
	}
	m.Errors.WithLabelValues(code).Inc()
}
