// Package metrics exposes the service's Prometheus instrumentation.
// Collectors are registered on the default registry via promauto and
// served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatementsProcessed counts finished background runs by final
	// status (completed or failed).
	StatementsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statements_processed_total",
		Help: "Statements that finished background processing, by final status.",
	}, []string{"status"})

	// PagesFailed counts pages that produced no usable result after
	// both extraction methods.
	PagesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pages_failed_total",
		Help: "Pages where both vector and raster extraction failed.",
	})

	// RasterFallbacks counts text pages that had to be re-extracted
	// through rasterization after vector extraction failed.
	RasterFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "raster_fallbacks_total",
		Help: "Text pages retried through the raster path.",
	})

	// RowsDropped counts table rows discarded by the transaction
	// parser as unparseable.
	RowsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rows_dropped_total",
		Help: "Table rows dropped during transaction parsing.",
	})

	// ProcessingSeconds tracks wall-clock time per statement run.
	ProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "statement_processing_seconds",
		Help:    "Wall-clock duration of a statement processing run.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
