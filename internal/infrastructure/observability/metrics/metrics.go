// Package metrics registers the Prometheus collectors for the dialogue core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tractcall_dialogue_turns_total",
			Help: "Dialogue turns by the orchestrator route that handled them.",
		},
		[]string{"route"},
	)

	TurnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tractcall_dialogue_turn_seconds",
			Help:    "End to end latency of one dialogue turn.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	BookingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tractcall_bookings_total",
			Help: "Appointment creation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ExtractionFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tractcall_extraction_fallbacks_total",
			Help: "Slot extractions that fell back to the deterministic extractor.",
		},
		[]string{"field"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tractcall_sessions_active",
			Help: "Sessions currently held in the session store.",
		},
	)

	SessionsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tractcall_sessions_swept_total",
			Help: "Sessions removed by the expiry sweep or capacity eviction.",
		},
	)

	SummariesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tractcall_summaries_total",
			Help: "Conversation summary dispatches by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		TurnsTotal,
		TurnLatency,
		BookingsTotal,
		ExtractionFallbacksTotal,
		SessionsActive,
		SessionsSweptTotal,
		SummariesTotal,
	)
}
