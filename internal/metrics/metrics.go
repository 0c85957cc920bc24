package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affect_evaluations_total",
			Help: "Interaction evaluations by outcome kind (ok or error taxonomy name)",
		},
		[]string{"outcome"},
	)

	InferenceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affect_inference_latency_seconds",
			Help:    "Latency of the inference collaborator",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affect_active_sessions",
			Help: "Number of live NPC sessions",
		},
	)

	MemoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affect_memory_operations_total",
			Help: "Memory store operations by kind",
		},
		[]string{"op"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affect_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)
