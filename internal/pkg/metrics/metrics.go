// Package metrics exposes Prometheus metrics for the chat pipeline and the
// session registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts finished turns by terminal status.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_chat_turns_total",
			Help: "Total number of chat turns by terminal status",
		},
		[]string{"status"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_chat_turn_duration_seconds",
			Help:    "Time from dequeue to terminal state of a chat turn",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	InflightTurns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rag_chat_inflight_turns",
			Help: "Number of turns currently being processed",
		},
	)

	QueuedTurns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rag_chat_queued_turns",
			Help: "Number of turns waiting behind an in-flight turn of the same conversation",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rag_chat_active_sessions",
			Help: "Number of registered socket sessions on this instance",
		},
	)

	RetrievalPassages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_chat_retrieval_passages",
			Help:    "Number of passages retrieved per turn",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		},
	)
)

func RecordTurnQueued() {
	QueuedTurns.Inc()
}

// RecordTurnStarted moves a turn from the queue to in-flight.
func RecordTurnStarted() {
	QueuedTurns.Dec()
	InflightTurns.Inc()
}

func RecordTurnFinished(status string, elapsed time.Duration) {
	InflightTurns.Dec()
	TurnsTotal.WithLabelValues(status).Inc()
	TurnDuration.Observe(elapsed.Seconds())
}

func RecordSessionOpened() {
	ActiveSessions.Inc()
}

func RecordSessionClosed() {
	ActiveSessions.Dec()
}

func RecordRetrieval(passages int) {
	RetrievalPassages.Observe(float64(passages))
}
