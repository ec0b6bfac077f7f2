package feed

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus instrumentation for the kernel, grounded on
// cartographus's direct use of client_golang. None of these counters feed
// back into any kernel decision — they are pure observation, so they never
// threaten determinism.
type Metrics struct {
	AppendTotal    *prometheus.CounterVec
	AppendDuration *prometheus.HistogramVec
	ScanTotal      prometheus.Counter
	RejectionTotal *prometheus.CounterVec
}

// NewMetrics builds and registers a Metrics instance against reg. Passing
// prometheus.NewRegistry() keeps metrics isolated per simulation run;
// passing prometheus.DefaultRegisterer wires into the process-wide default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AppendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsim_store_append_total",
			Help: "Number of events appended to the log, by kind.",
		}, []string{"kind"}),
		AppendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedsim_store_append_duration_seconds",
			Help:    "Latency of Store.Append, by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		ScanTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedsim_store_scan_total",
			Help: "Number of Store.Scan invocations.",
		}),
		RejectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedsim_admission_rejection_total",
			Help: "Number of rejected actions, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.AppendTotal, m.AppendDuration, m.ScanTotal, m.RejectionTotal)
	}
	return m
}

// ObserveOutcome records a rejection counter bump when outcome was
// rejected; it is a no-op for accepted outcomes. Callers (typically the
// CLI driver) wire this in around Admission.Act without the kernel itself
// depending on prometheus.
func (m *Metrics) ObserveOutcome(outcome ActionPayload) {
	if m == nil {
		return
	}
	if outcome.Status == StatusRejected {
		m.RejectionTotal.WithLabelValues(string(outcome.Reason)).Inc()
	}
}
