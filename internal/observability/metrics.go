// Package observability provides the engine's Prometheus metrics and the
// dedicated admin server exposing health probes and the metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace is the global prefix for all metrics (muninn_...).
const namespace = "muninn"

var (
	// EventsLogged counts events logged by the host app, labeled by event
	// type. Metric: muninn_engine_events_logged_total
	EventsLogged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "events_logged_total",
		Help:      "Total events logged by the host application",
	}, []string{"type"})

	// MatchesStored counts event copies appended to campaign buckets.
	// Metric: muninn_engine_matches_stored_total
	MatchesStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "matches_stored_total",
		Help:      "Total event copies matched into campaign buckets",
	})

	// CampaignsInRepository tracks the current size of the in-memory
	// campaign list. Metric: muninn_engine_campaigns
	CampaignsInRepository = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "campaigns",
		Help:      "Campaigns currently held by the repository",
	})

	// SyncCycles counts repository syncs by outcome.
	// Metric: muninn_engine_sync_cycles_total
	SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "sync_cycles_total",
		Help:      "Total campaign list syncs",
	}, []string{"status"})

	// SyncDuration measures the duration of one sync cycle, mixer round
	// trip included. Metric: muninn_engine_sync_seconds
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "sync_seconds",
		Help:      "Time taken for one campaign sync cycle",
		Buckets:   prometheus.DefBuckets,
	})

	// DispatchOutcomes counts dispatched campaigns by final outcome:
	// displayed, cancelled, permission_denied, not_approved, dropped.
	// Metric: muninn_dispatcher_outcomes_total
	DispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "outcomes_total",
		Help:      "Campaign dispatch outcomes",
	}, []string{"outcome"})

	// PermissionChecks counts display-permission oracle calls by decision.
	// Metric: muninn_mixer_permission_checks_total
	PermissionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mixer",
		Name:      "permission_checks_total",
		Help:      "Display-permission checks by decision",
	}, []string{"decision"})

	// StoreOps counts persistence operations by backend, operation and
	// status. Metric: muninn_store_operations_total
	StoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "User-store operations by backend, op and status",
	}, []string{"backend", "op", "status"})

	// HostAPIReqDuration measures host API request latency.
	// Metric: muninn_hostapi_http_handling_seconds
	HostAPIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "hostapi",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle host API requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// HostAPIReqTotal counts host API requests.
	// Metric: muninn_hostapi_http_requests_total
	HostAPIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hostapi",
		Name:      "http_requests_total",
		Help:      "Total host API requests",
	}, []string{"method", "path", "code"})
)
