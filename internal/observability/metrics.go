package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xwines_http_requests_total",
			Help: "Total number of HTTP requests by matched route.",
		},
		[]string{"method", "route", "status"},
	)
	// Assistant requests wait on a remote model, hence the long tail.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xwines_http_request_duration_seconds",
			Help:    "HTTP request latency by matched route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)
	storeQueryDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xwines_store_query_duration_ms",
			Help:    "Store query latency in milliseconds by backend dialect.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"dialect"},
	)
	browseRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xwines_browse_requests_total",
			Help: "Total number of browser operations by kind and result.",
		},
		[]string{"kind", "result"},
	)
	browseDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xwines_browse_duration_ms",
			Help:    "Browser listing and detail latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"kind"},
	)
	relationLookupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xwines_relation_lookup_failures_total",
			Help: "Total number of inverse relation lookups omitted from detail views because they failed.",
		},
	)
	assistantOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xwines_assistant_outcomes_total",
			Help: "Total number of assistant questions by outcome.",
		},
		[]string{"outcome"},
	)
	schemaContextBuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xwines_schema_context_builds_total",
			Help: "Total number of schema context builds.",
		},
	)
	schemaContextBuildMs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xwines_schema_context_build_ms",
			Help: "Duration of the last schema context build in milliseconds.",
		},
	)
	importedRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xwines_imported_rows_total",
			Help: "Total number of rows written by the dataset importer by table.",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		storeQueryDurationMs,
		browseRequestsTotal,
		browseDurationMs,
		relationLookupFailuresTotal,
		assistantOutcomesTotal,
		schemaContextBuildsTotal,
		schemaContextBuildMs,
		importedRowsTotal,
	)
}

func ObserveStoreQuery(dialect string, elapsed time.Duration) {
	storeQueryDurationMs.WithLabelValues(dialect).Observe(float64(elapsed.Milliseconds()))
}

func ObserveBrowse(kind string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	browseRequestsTotal.WithLabelValues(kind, result).Inc()
	browseDurationMs.WithLabelValues(kind).Observe(float64(elapsed.Milliseconds()))
}

func IncrementRelationLookupFailure() {
	relationLookupFailuresTotal.Inc()
}

func IncrementAssistantOutcome(outcome string) {
	assistantOutcomesTotal.WithLabelValues(outcome).Inc()
}

func ObserveSchemaContextBuild(elapsed time.Duration) {
	schemaContextBuildsTotal.Inc()
	schemaContextBuildMs.Set(float64(elapsed.Milliseconds()))
}

func AddImportedRows(table string, rows int) {
	if rows <= 0 {
		return
	}
	importedRowsTotal.WithLabelValues(table).Add(float64(rows))
}
