// Package metrics provides Prometheus metrics for the MCP service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksTotal counts tasks by final status.
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "tasks",
			Name:      "total",
			Help:      "Total number of tasks by final status",
		},
		[]string{"status"}, // "succeeded", "failed", "cancelled"
	)

	// TasksActive tracks currently running tasks.
	TasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcp",
			Subsystem: "tasks",
			Name:      "active",
			Help:      "Number of currently running tasks",
		},
	)

	// QueueDepth tracks tasks waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcp",
			Subsystem: "tasks",
			Name:      "queue_depth",
			Help:      "Number of pending tasks waiting for a worker slot",
		},
	)

	// TaskDuration tracks task execution duration.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "status"},
	)

	// NodeDuration tracks pipeline node execution duration.
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "pipeline",
			Name:      "node_duration_seconds",
			Help:      "Pipeline node execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"graph", "node"},
	)

	// BackendInvocations counts backend invocations by outcome.
	BackendInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "backend",
			Name:      "invocations_total",
			Help:      "Total number of backend invocations",
		},
		[]string{"capability", "backend", "outcome"}, // "ok", "unhealthy", "timeout", "error"
	)

	// BackendInvokeDuration tracks backend invocation latency.
	BackendInvokeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "backend",
			Name:      "invoke_duration_seconds",
			Help:      "Backend invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"capability", "backend"},
	)

	// HealthProbes counts health probe results by backend.
	HealthProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "backend",
			Name:      "health_probes_total",
			Help:      "Total number of backend health probes",
		},
		[]string{"backend", "result"}, // "healthy", "unhealthy", "cached"
	)

	// DegradedResults counts resolutions served by a degraded fallback.
	DegradedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "backend",
			Name:      "degraded_results_total",
			Help:      "Total number of resolutions served by a degraded fallback backend",
		},
		[]string{"capability"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RegistryReloads counts catalog reload attempts.
	RegistryReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "registry",
			Name:      "reloads_total",
			Help:      "Total number of catalog reload attempts",
		},
		[]string{"result"}, // "success", "error"
	)
)
