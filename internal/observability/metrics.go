// Package observability wires tracing and the Prometheus collectors shared
// by the broadcast pipeline, the worker pool and the search path.
//
// Labels are bounded enums (status, kind, mode, result) so cardinality stays
// constant regardless of traffic. All collectors are registered on the
// default registry in init and are exposed by the /metrics route.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// BroadcastDeliveries counts per-recipient delivery outcomes (sent|failed).
	BroadcastDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Broadcast delivery attempts by outcome.",
		},
		[]string{"status"},
	)

	// BroadcastEnqueued counts delivery units scheduled by fan-out or requeue.
	BroadcastEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_enqueued_total",
			Help: "Delivery units pushed to the job queue.",
		},
	)

	// WorkerJobs counts processed jobs by kind and result (ok|error).
	WorkerJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_total",
			Help: "Background jobs processed by the worker pool.",
		},
		[]string{"kind", "result"},
	)

	// SearchRequests counts searches by mode and cache outcome (hit|miss|error).
	SearchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Search requests by mode and cache outcome.",
		},
		[]string{"mode", "cache"},
	)

	// WebhookUpdates counts Telegram webhook deliveries by result
	// (ok|duplicate|invalid|error).
	WebhookUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_webhook_updates_total",
			Help: "Telegram updates received on the webhook by result.",
		},
		[]string{"result"},
	)

	// SearchLatency observes backend query latency in seconds.
	SearchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_backend_duration_seconds",
			Help:    "Latency of search backend queries.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(BroadcastDeliveries, BroadcastEnqueued, WorkerJobs, SearchRequests, SearchLatency, WebhookUpdates)
}
