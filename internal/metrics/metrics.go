package metrics

import (
	"log"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce    sync.Once
	serverMutex sync.Mutex
	currentSrv  *http.Server
)

// Purge run metrics
var (
	// OrphansFoundTotal tracks orphaned file records discovered by scans
	OrphansFoundTotal prometheus.Counter

	// FilesDeletedTotal tracks orphaned files removed in fix mode
	FilesDeletedTotal prometheus.Counter

	// BytesFreedTotal tracks total bytes freed across all fix runs
	BytesFreedTotal prometheus.Counter

	// GradeRowsDeletedTotal tracks dependent relational rows removed
	GradeRowsDeletedTotal prometheus.Counter

	// ErrorsTotal tracks failed blob or store operations
	ErrorsTotal prometheus.Counter

	// RunDuration tracks how long full scan/fix passes take
	RunDuration prometheus.Histogram

	// LastRunTimestamp records Unix timestamp of the last run
	LastRunTimestamp prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		OrphansFoundTotal = NewCounter(
			"orphansweep_orphans_found_total",
			"Total number of orphaned file records discovered.",
		)
		FilesDeletedTotal = NewCounter(
			"orphansweep_files_deleted_total",
			"Total number of orphaned files deleted.",
		)
		BytesFreedTotal = NewBytesCounter(
			"orphansweep_bytes_freed_total",
			"Total bytes freed by orphan-sweep.",
		)
		GradeRowsDeletedTotal = NewCounter(
			"orphansweep_grade_rows_deleted_total",
			"Total dependent relational rows deleted.",
		)
		ErrorsTotal = NewCounter(
			"orphansweep_errors_total",
			"Total errors encountered during purge runs.",
		)
		RunDuration = NewDurationHistogram(
			"orphansweep_run_duration_seconds",
			"Duration of scan/fix passes in seconds.",
		)
		LastRunTimestamp = NewGauge(
			"orphansweep_last_run_timestamp",
			"Timestamp of the last run (Unix epoch seconds).",
		)

		prometheus.MustRegister(
			OrphansFoundTotal,
			FilesDeletedTotal,
			BytesFreedTotal,
			GradeRowsDeletedTotal,
			ErrorsTotal,
			RunDuration,
			LastRunTimestamp,
		)

		// Zero the gauge so it appears in /metrics before the first run
		LastRunTimestamp.Set(0)
	})
}

// StartServer starts the metrics HTTP server on the specified address
// Exposes /metrics (Prometheus) and /health endpoints
func StartServer(addr string, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Printf("metrics server already running on %s", currentSrv.Addr)
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	currentSrv = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := currentSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()
}
