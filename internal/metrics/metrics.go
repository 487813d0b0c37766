package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contentpulse_refresh_runs_total",
		Help: "Total engagement refresh runs",
	})
	RefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contentpulse_refresh_errors_total",
		Help: "Total per-item refresh failures",
	})
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "contentpulse_refresh_duration_seconds",
		Help:    "Refresh run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	Snapshots = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contentpulse_snapshots_total",
		Help: "Engagement snapshots by outcome",
	}, []string{"outcome"})
	ImportRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contentpulse_import_records_total",
		Help: "Imported records by kind and outcome",
	}, []string{"kind", "outcome"})
	StoreFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contentpulse_store_failures_total",
		Help: "Record store operation failures",
	}, []string{"op"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contentpulse_api_retries_total",
		Help: "Total platform API retry attempts",
	}, []string{"platform"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contentpulse_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contentpulse_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

// Snapshot outcomes.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeOrphan    = "orphan"
	OutcomeFailed    = "failed"
	OutcomeAdded     = "added"
	OutcomeSkipped   = "skipped"
	OutcomeInvalid   = "invalid"
)

func init() {
	prometheus.MustRegister(RefreshRuns, RefreshErrors, RefreshDuration, Snapshots, ImportRecords,
		StoreFailures, APIRetries, CommandRuns, CommandErrors)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
// An empty addr falls back to METRICS_ADDR; if that is empty too nothing starts.
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveRefreshDuration records a refresh run duration.
func ObserveRefreshDuration(start time.Time) {
	RefreshDuration.Observe(time.Since(start).Seconds())
}

// IncSnapshot counts a snapshot outcome.
func IncSnapshot(outcome string) { Snapshots.WithLabelValues(outcome).Inc() }

// IncImport counts an imported record outcome; kind is "content" or "engagement".
func IncImport(kind, outcome string) { ImportRecords.WithLabelValues(kind, outcome).Inc() }

// IncStoreFailure counts a failed store operation.
func IncStoreFailure(op string) { StoreFailures.WithLabelValues(op).Inc() }

// IncAPIRetry increments the retry counter for a platform.
func IncAPIRetry(platform string) { APIRetries.WithLabelValues(platform).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
