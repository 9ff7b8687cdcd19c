package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records request latency by method, route pattern, and
// status class, mirroring the teacher's core telemetry package (now
// inlined here since that module is not a fetchable dependency).
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "assetloan",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// LoansCreatedTotal counts loans created.
var LoansCreatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "assetloan",
		Subsystem: "loans",
		Name:      "created_total",
		Help:      "Total number of loans created.",
	},
)

// LoansClosedTotal counts loans transitioned to CLOSED.
var LoansClosedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "assetloan",
		Subsystem: "loans",
		Name:      "closed_total",
		Help:      "Total number of loans closed.",
	},
)

// StockReservationRetriesTotal counts serialization-conflict retries in the
// stock reservation path (C10), ambient visibility into contention that
// otherwise only surfaces as latency.
var StockReservationRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "assetloan",
		Subsystem: "stock",
		Name:      "reservation_retries_total",
		Help:      "Total number of stock reservation retries after a serialization conflict.",
	},
)

// StockReservationConflictsTotal counts reservations that exhausted their
// retry budget and surfaced a conflict to the caller.
var StockReservationConflictsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "assetloan",
		Subsystem: "stock",
		Name:      "reservation_conflicts_total",
		Help:      "Total number of stock reservations that exhausted their retry budget.",
	},
)

// AuditEntriesTotal counts audit entries written, by action.
var AuditEntriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "assetloan",
		Subsystem: "audit",
		Name:      "entries_total",
		Help:      "Total number of audit entries written, by action.",
	},
	[]string{"action"},
)

// All returns the assetloan-specific collectors for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		LoansCreatedTotal,
		LoansClosedTotal,
		StockReservationRetriesTotal,
		StockReservationConflictsTotal,
		AuditEntriesTotal,
	}
}
