package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainvouch_intents_created_total",
		Help: "The total number of created intents by request type",
	}, []string{"request_type"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainvouch_reconciliations_total",
		Help: "The total number of reconciliation outcomes by request type and status",
	}, []string{"request_type", "status"})

	ReconciliationTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainvouch_reconciliation_seconds",
		Help:    "Time taken to reconcile a single intent",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"request_type"})

	EvidenceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainvouch_evidence_fetches_total",
		Help: "The total number of evidence lookups by chain and kind",
	}, []string{"chain_id", "kind"})

	EvidenceFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainvouch_evidence_fetch_errors_total",
		Help: "The total number of failed evidence lookups by chain and kind",
	}, []string{"chain_id", "kind"})

	EvidenceFetchTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainvouch_evidence_fetch_seconds",
		Help:    "Time taken to fetch evidence from a chain node",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"chain_id", "kind"})

	AttachConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainvouch_attach_conflicts_total",
		Help: "The total number of rejected attach attempts by request type",
	}, []string{"request_type"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainvouch_circuit_breaker_trips_total",
		Help: "The total number of circuit breaker trips by chain",
	}, []string{"chain_id"})
)
