package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder collects ledger operation metrics. A nil *Recorder is a no-op.
type Recorder struct {
	registry    *prometheus.Registry
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	openEscrows prometheus.Gauge
}

// NewRecorder registers the ledger collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Time spent inside ledger operations.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"operation"}),
		openEscrows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "open_escrows",
			Help:      "Escrows created and not yet finished.",
		}),
	}
	r.registry.MustRegister(
		r.operations,
		r.duration,
		r.openEscrows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry for HTTP exposition.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Observe records one operation outcome and its latency.
func (r *Recorder) Observe(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetOpenEscrows publishes the current size of the escrow table.
func (r *Recorder) SetOpenEscrows(n int) {
	if r == nil {
		return
	}
	r.openEscrows.Set(float64(n))
}
