package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// QueriesTotal counts executed warehouse queries
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsql_queries_total",
			Help: "Total number of warehouse queries executed",
		},
		[]string{"query", "status"}, // status: success, error
	)

	// QueryDuration measures warehouse query time, temp tables included
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statsql_query_duration_seconds",
			Help:    "Warehouse query execution time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"query"},
	)

	// RowsReturned counts rows read from the warehouse
	RowsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsql_rows_returned_total",
			Help: "Total number of rows returned by warehouse queries",
		},
		[]string{"query"},
	)

	// TempTablesCreated counts temp tables created for large IN lists
	TempTablesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsql_temp_tables_created_total",
			Help: "Total number of temporary tables created",
		},
		[]string{"query"},
	)

	// CacheHits tracks result cache hits
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsql_cache_hits_total",
			Help: "Total number of result cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks result cache misses
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsql_cache_misses_total",
			Help: "Total number of result cache misses",
		},
		[]string{"cache"},
	)

	// WarmerRuns counts cache warming runs per request
	WarmerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsql_warmer_runs_total",
			Help: "Total number of cache warming runs",
		},
		[]string{"request", "status"},
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statsql_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordQuery records a warehouse query
func RecordQuery(query, status string, duration float64) {
	QueriesTotal.WithLabelValues(query, status).Inc()
	QueryDuration.WithLabelValues(query).Observe(duration)
}

// RecordRows records rows returned by a query
func RecordRows(query string, count int) {
	RowsReturned.WithLabelValues(query).Add(float64(count))
}

// RecordTempTables records temp tables created for a query
func RecordTempTables(query string, count int) {
	TempTablesCreated.WithLabelValues(query).Add(float64(count))
}

// RecordCacheHit records a result cache hit
func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a result cache miss
func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

// RecordWarmerRun records one warming run of a request
func RecordWarmerRun(request, status string) {
	WarmerRuns.WithLabelValues(request, status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
