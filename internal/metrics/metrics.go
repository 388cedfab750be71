package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicq_agent_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicq_agent_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Decision metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicq_agent_events_received_total",
			Help: "Inbound message events",
		},
		[]string{"chat_kind", "source"}, // source: "poll" or "webhook"
	)

	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicq_agent_events_skipped_total",
			Help: "Inbound events dropped before a decision",
		},
		[]string{"reason"},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicq_agent_decisions_total",
			Help: "Response decisions by verdict",
		},
		[]string{"verdict", "reason"},
	)

	JitterDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicq_agent_jitter_delay_seconds",
			Help:    "Hand-off jitter delays",
			Buckets: []float64{.5, 1, 1.5, 2, 3, 4, 5},
		},
		[]string{"kind"},
	)

	InterestRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aicq_agent_interest_rooms",
			Help: "Rooms with live interest state",
		},
	)

	ChunksSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aicq_agent_chunks_sent_total",
			Help: "Outbound reply chunks delivered",
		},
	)

	// Collaborator metrics
	CollaboratorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aicq_agent_collaborator_latency_seconds",
			Help:    "Latency of model, similarity, persistence and transport calls",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
		[]string{"collaborator"},
	)

	CollaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aicq_agent_collaborator_errors_total",
			Help: "Failed collaborator calls",
		},
		[]string{"collaborator"},
	)
)
