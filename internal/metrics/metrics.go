package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsDispatched counts change-stream events delivered to a handler.
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_events_dispatched_total",
		Help: "Change-stream events delivered to an entity handler",
	}, []string{"table", "op"})

	// EventsUnhandled counts events for tables with no registered handler.
	EventsUnhandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_events_unhandled_total",
		Help: "Change-stream events skipped because no handler is registered",
	}, []string{"table"})

	// FlowsPruned counts flows removed by cascading invalidation.
	FlowsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flows_pruned_total",
		Help: "Flows removed by cascading invalidation",
	}, []string{"entity"})

	// APIRequests counts control API requests by route and outcome.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Control API requests served",
	}, []string{"method", "route", "status"})

	// APIRequestDuration observes control API request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "Control API request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
