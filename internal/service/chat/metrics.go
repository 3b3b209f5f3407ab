package chat

import "github.com/prometheus/client_golang/prometheus"

const (
	pathRemote   = "remote"
	pathLocal    = "local"
	pathFallback = "fallback"
)

// Metrics counts which backend served each dispatched call.
type Metrics struct {
	calls *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custompc",
		Subsystem: "chat",
		Name:      "backend_calls_total",
		Help:      "Chat operations by serving path: remote, local, or fallback after a remote failure.",
	}, []string{"op", "path"})
	if reg != nil {
		reg.MustRegister(calls)
	}
	return &Metrics{calls: calls}
}

// Calls exposes the counter vector for inspection.
func (m *Metrics) Calls() *prometheus.CounterVec {
	return m.calls
}

func (m *Metrics) observe(op, path string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, path).Inc()
}
