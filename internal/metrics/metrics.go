package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ModelRequestsTotal counts generateContent calls by operation and result.
	ModelRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comedypulse",
		Subsystem: "model",
		Name:      "requests_total",
		Help:      "Total number of model requests, labeled by operation and result.",
	}, []string{"operation", "result"})

	// ModelRequestDurationSeconds is the wall time of one model request.
	ModelRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "comedypulse",
		Subsystem: "model",
		Name:      "request_duration_seconds",
		Help:      "Time spent waiting on the model, labeled by operation.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"operation"})

	// SessionTransitionsTotal counts entries into each session status.
	SessionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comedypulse",
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Total number of session state transitions, labeled by target status.",
	}, []string{"status"})

	// StaleResultsTotal counts async completions dropped because a newer
	// session had started.
	StaleResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comedypulse",
		Subsystem: "session",
		Name:      "stale_results_total",
		Help:      "Total number of superseded results discarded, labeled by stage.",
	}, []string{"stage"})

	ChatTurnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "comedypulse",
		Subsystem: "session",
		Name:      "chat_turns_total",
		Help:      "Total number of chat turns appended, labeled by role.",
	}, []string{"role"})

	LiveClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "comedypulse",
		Subsystem: "live",
		Name:      "clients",
		Help:      "Number of connected websocket clients.",
	})
)

// Register registers all collectors with the default registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ModelRequestsTotal,
			ModelRequestDurationSeconds,
			SessionTransitionsTotal,
			StaleResultsTotal,
			ChatTurnsTotal,
			LiveClients,
		)
	})
}
