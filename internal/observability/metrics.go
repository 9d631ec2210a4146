// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	TradesReceived   prometheus.Counter
	TradesStored     prometheus.Counter
	TradesDuplicate  prometheus.Counter
	TradesFailed     prometheus.Counter
	TradeBufferDepth prometheus.Gauge
	StreamReconnects prometheus.Counter

	// Aggregation metrics
	WindowsExtracted    *prometheus.CounterVec
	UniquePricesWritten prometheus.Counter

	// Submission metrics
	GroupsSubmitted      *prometheus.CounterVec
	RowsSubmitted        prometheus.Counter
	HashWriteFailures    prometheus.Counter
	SubmissionCursor     prometheus.Gauge
	ConfirmationAttempts prometheus.Histogram

	// Retention metrics
	RowsSwept *prometheus.CounterVec

	// Latency metrics
	JobDuration    *prometheus.HistogramVec
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulJob *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "price_relay"
	}
	f := promauto.With(reg)

	return &Metrics{
		TradesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_received_total",
			Help:      "Total number of trades received from the stream",
		}),
		TradesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_stored_total",
			Help:      "Total number of new trades stored",
		}),
		TradesDuplicate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_duplicate_total",
			Help:      "Total number of trades ignored as duplicates",
		}),
		TradesFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_failed_total",
			Help:      "Total number of trades that could not be stored after retries",
		}),
		TradeBufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trade_buffer_depth",
			Help:      "Current number of trades waiting to be written",
		}),
		StreamReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stream_reconnects_total",
			Help:      "Total number of trade stream reconnects",
		}),

		WindowsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "windows_extracted_total",
			Help:      "Total number of windows extracted by outcome",
		}, []string{"outcome"}),
		UniquePricesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "unique_prices_written_total",
			Help:      "Total number of unique price rows written",
		}),

		GroupsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "groups_total",
			Help:      "Total number of window groups processed by result",
		}, []string{"result"}),
		RowsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "rows_total",
			Help:      "Total number of unique price rows covered by confirmed submissions",
		}),
		HashWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "hash_write_failures_total",
			Help:      "Total number of confirmed submissions whose hash could not be recorded",
		}),
		SubmissionCursor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "cursor",
			Help:      "Highest unique price row id fully processed",
		}),
		ConfirmationAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "confirmation_attempts",
			Help:      "Number of status polls until a terminal state",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 30},
		}),

		RowsSwept: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "rows_deleted_total",
			Help:      "Total number of rows deleted by the retention sweeper",
		}, []string{"table"}),

		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Periodic job execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"job", "status"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulJob: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_job_timestamp",
			Help:      "Unix timestamp of the last successful run of each job",
		}, []string{"job"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordTradeReceived increments the trades received counter.
func RecordTradeReceived() {
	DefaultMetrics.TradesReceived.Inc()
}

// RecordTradeStored records the outcome of a trade insert.
func RecordTradeStored(inserted bool, err error) {
	switch {
	case err != nil:
		DefaultMetrics.TradesFailed.Inc()
	case inserted:
		DefaultMetrics.TradesStored.Inc()
	default:
		DefaultMetrics.TradesDuplicate.Inc()
	}
}

// UpdateTradeBufferDepth sets the trade buffer gauge.
func UpdateTradeBufferDepth(n int) {
	DefaultMetrics.TradeBufferDepth.Set(float64(n))
}

// RecordStreamReconnect increments the stream reconnect counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// RecordWindowExtracted records one extracted window and the rows it produced.
func RecordWindowExtracted(rows int, err error) {
	switch {
	case err != nil:
		DefaultMetrics.WindowsExtracted.WithLabelValues("error").Inc()
	case rows == 0:
		DefaultMetrics.WindowsExtracted.WithLabelValues("empty").Inc()
	default:
		DefaultMetrics.WindowsExtracted.WithLabelValues("written").Inc()
		DefaultMetrics.UniquePricesWritten.Add(float64(rows))
	}
}

// RecordGroupSubmitted records the result of one window group submission.
func RecordGroupSubmitted(ok bool, rows int) {
	if ok {
		DefaultMetrics.GroupsSubmitted.WithLabelValues("success").Inc()
		DefaultMetrics.RowsSubmitted.Add(float64(rows))
		return
	}
	DefaultMetrics.GroupsSubmitted.WithLabelValues("failure").Inc()
}

// RecordHashWriteFailure increments the hash write-back failure counter.
func RecordHashWriteFailure() {
	DefaultMetrics.HashWriteFailures.Inc()
}

// UpdateSubmissionCursor sets the cursor gauge.
func UpdateSubmissionCursor(id int64) {
	DefaultMetrics.SubmissionCursor.Set(float64(id))
}

// RecordConfirmationAttempts records how many polls a confirmation took.
func RecordConfirmationAttempts(n int) {
	DefaultMetrics.ConfirmationAttempts.Observe(float64(n))
}

// RecordRowsSwept adds deleted row counts for a table.
func RecordRowsSwept(table string, n int64) {
	DefaultMetrics.RowsSwept.WithLabelValues(table).Add(float64(n))
}

// RecordJobRun records a periodic job run.
func RecordJobRun(job string, err error, durationSeconds float64, finishedUnix int64) {
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		DefaultMetrics.LastSuccessfulJob.WithLabelValues(job).Set(float64(finishedUnix))
	}
	DefaultMetrics.JobDuration.WithLabelValues(job, status).Observe(durationSeconds)
}

// RecordRPCLatency records ledger RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
