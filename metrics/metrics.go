// Package metrics provides Prometheus metrics for insuredmine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestRunsTotal tracks ingestion runs by outcome
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by status",
		},
		[]string{"status"},
	)

	// IngestRecordsTotal counts parsed records across all runs
	IngestRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total number of records parsed from uploaded files",
		},
	)

	// IngestEntitiesResolved counts resolved natural keys by entity kind
	IngestEntitiesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "ingest",
			Name:      "entities_resolved_total",
			Help:      "Total number of natural keys resolved to an id, by entity",
		},
		[]string{"entity"},
	)

	// IngestPoliciesCreated counts policies created by ingestion
	IngestPoliciesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "ingest",
			Name:      "policies_created_total",
			Help:      "Total number of policies created by ingestion",
		},
	)

	// IngestStageDuration tracks each pipeline stage in seconds
	IngestStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "insuredmine",
			Subsystem: "ingest",
			Name:      "stage_duration_seconds",
			Help:      "Duration of ingestion stages in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// MessagesScheduledTotal counts accepted schedule requests
	MessagesScheduledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "scheduler",
			Name:      "messages_scheduled_total",
			Help:      "Total number of messages scheduled",
		},
	)

	// MessagesDispatchedTotal counts dispatch attempts by status
	MessagesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "scheduler",
			Name:      "messages_dispatched_total",
			Help:      "Total number of dispatch attempts by status",
		},
		[]string{"status"},
	)

	// SweepsSkippedTotal counts ticks dropped because a sweep was running
	SweepsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "scheduler",
			Name:      "sweeps_skipped_total",
			Help:      "Total number of sweeps skipped because one was in progress",
		},
	)

	// CPUUsagePercent is the last sampled host CPU usage
	CPUUsagePercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "insuredmine",
			Subsystem: "monitor",
			Name:      "cpu_usage_percent",
			Help:      "Most recent host CPU usage sample in percent",
		},
	)

	// CPUOverloadTotal counts samples at or above the threshold
	CPUOverloadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "monitor",
			Name:      "cpu_overload_total",
			Help:      "Total number of CPU samples at or above the threshold",
		},
	)

	// HTTPRequestsTotal tracks inbound API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insuredmine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"route", "status_code"},
	)
)
