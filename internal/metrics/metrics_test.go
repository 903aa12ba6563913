package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	// Call Init multiple times - should be idempotent via sync.Once
	Init()
	Init()
	Init()

	if OrphansFoundTotal == nil {
		t.Error("OrphansFoundTotal should be initialized")
	}
	if FilesDeletedTotal == nil {
		t.Error("FilesDeletedTotal should be initialized")
	}
	if BytesFreedTotal == nil {
		t.Error("BytesFreedTotal should be initialized")
	}
	if GradeRowsDeletedTotal == nil {
		t.Error("GradeRowsDeletedTotal should be initialized")
	}
	if ErrorsTotal == nil {
		t.Error("ErrorsTotal should be initialized")
	}
	if RunDuration == nil {
		t.Error("RunDuration should be initialized")
	}
	if LastRunTimestamp == nil {
		t.Error("LastRunTimestamp should be initialized")
	}

	// Metrics must be gatherable from the default registry
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"orphansweep_orphans_found_total",
		"orphansweep_files_deleted_total",
		"orphansweep_bytes_freed_total",
		"orphansweep_grade_rows_deleted_total",
		"orphansweep_errors_total",
		"orphansweep_last_run_timestamp",
	} {
		if !found[name] {
			t.Errorf("Metric %s not registered", name)
		}
	}
}

// TestCountersIncrement verifies counters accept updates
func TestCountersIncrement(t *testing.T) {
	Init()

	OrphansFoundTotal.Inc()
	FilesDeletedTotal.Inc()
	BytesFreedTotal.Add(1024)
	GradeRowsDeletedTotal.Add(3)
	ErrorsTotal.Inc()
	RunDuration.Observe(0.5)
	LastRunTimestamp.Set(1700000000)
}
