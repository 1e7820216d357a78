package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// ResolutionsTotal counts template resolutions by source and outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycat_resolutions_total",
			Help: "Total number of query template resolutions",
		},
		[]string{"source", "status"}, // status: success, missing_parameter, malformed_template, ...
	)

	// BackendQueries counts queries dispatched to a backend
	BackendQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycat_backend_queries_total",
			Help: "Total number of queries dispatched to a backend",
		},
		[]string{"driver", "status"}, // status: success, partial, error
	)

	// BackendQueryDuration measures backend query execution time
	BackendQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querycat_backend_query_duration_seconds",
			Help:    "Backend query execution time",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"driver"},
	)

	// BackendRowsReturned counts rows returned by backend queries
	BackendRowsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycat_backend_rows_returned_total",
			Help: "Total number of rows returned by backend queries",
		},
		[]string{"driver"},
	)

	// HistoryRecords counts query history writes
	HistoryRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycat_history_records_total",
			Help: "Total number of query history records written",
		},
		[]string{"status"},
	)
)
