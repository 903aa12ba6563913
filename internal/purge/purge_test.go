package purge

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"orphan-sweep/internal/metrics"
	"orphan-sweep/internal/scan"
)

func init() {
	// Initialize metrics once for all tests
	metrics.Init()
}

// fakeBackend plays all three collaborators: the scan source, the blob
// store, and the relational store. DeleteAreaRows removes the tuple's
// records from the source, so destructive pagination shrinks the result
// set exactly like the real store does.
type fakeBackend struct {
	remaining []scan.Record

	blobCalls      []string
	blobFailItemID int64 // DeleteAreaFiles fails for this item id when set

	areaRowCalls   []string
	gradeRowCalls  [][]int64
	gradeRowsPerID int64
}

func tupleKey(contextID int64, component, fileArea string, itemID int64) string {
	return fmt.Sprintf("%d/%s/%s/%d", contextID, component, fileArea, itemID)
}

func (f *fakeBackend) OrphanedPage(offset, limit int) ([]scan.Record, error) {
	if offset >= len(f.remaining) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.remaining) {
		end = len(f.remaining)
	}
	page := make([]scan.Record, end-offset)
	copy(page, f.remaining[offset:end])
	return page, nil
}

func (f *fakeBackend) DeleteAreaFiles(contextID int64, component, fileArea string, itemID int64) error {
	f.blobCalls = append(f.blobCalls, tupleKey(contextID, component, fileArea, itemID))
	if f.blobFailItemID != 0 && itemID == f.blobFailItemID {
		return errors.New("permission denied")
	}
	return nil
}

func (f *fakeBackend) DeleteAreaRows(contextID int64, component, fileArea string, itemID int64) (int64, error) {
	f.areaRowCalls = append(f.areaRowCalls, tupleKey(contextID, component, fileArea, itemID))

	var kept []scan.Record
	var removed int64
	for _, r := range f.remaining {
		if r.ContextID == contextID && r.Component == component && r.FileArea == fileArea && r.ItemID == itemID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	f.remaining = kept
	return removed, nil
}

func (f *fakeBackend) DeleteGradeRows(gradeIDs []int64) (int64, error) {
	ids := make([]int64, len(gradeIDs))
	copy(ids, gradeIDs)
	f.gradeRowCalls = append(f.gradeRowCalls, ids)
	return f.gradeRowsPerID * int64(len(gradeIDs)), nil
}

func record(id, itemID int64, area string, size int64) scan.Record {
	return scan.Record{
		ID:        id,
		ContextID: 100,
		Component: scan.Component,
		FileArea:  area,
		ItemID:    itemID,
		Filename:  fmt.Sprintf("file%d.pdf", id),
		Filesize:  size,
	}
}

// TestDryRunNeverDeletes proves the dry-run contract:
// When fix=false, ZERO delete calls must occur
func TestDryRunNeverDeletes(t *testing.T) {
	backend := &fakeBackend{remaining: []scan.Record{
		record(1, 5, "pages", 100),
		record(2, 5, "combined", 200),
		record(3, 7, "download", 300),
	}}

	var out bytes.Buffer
	purger := NewPurger(nil, false, backend, backend, nil)
	purger.SetOutput(&out)

	summary, err := purger.Run(scan.NewScanner(backend, 100, nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(backend.blobCalls) != 0 {
		t.Errorf("DRY-RUN VIOLATION: Expected 0 blob deletions, got %v", backend.blobCalls)
	}
	if len(backend.areaRowCalls) != 0 {
		t.Errorf("DRY-RUN VIOLATION: Expected 0 row deletions, got %v", backend.areaRowCalls)
	}
	if len(backend.gradeRowCalls) != 0 {
		t.Errorf("DRY-RUN VIOLATION: Expected 0 grade cleanups, got %v", backend.gradeRowCalls)
	}

	if summary.FilesFound != 3 || summary.BytesFound != 600 {
		t.Errorf("Expected 3 files / 600 bytes, got %d / %d", summary.FilesFound, summary.BytesFound)
	}
	if !strings.Contains(out.String(), "Found 3 orphaned files, freeing up 600 bytes.") {
		t.Errorf("Summary wording wrong:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "--fix") {
		t.Errorf("Dry-run summary must name the fix re-invocation:\n%s", out.String())
	}
}

// TestNoOrphansSummary verifies the zero-orphan run performs no deletions
// and says so
func TestNoOrphansSummary(t *testing.T) {
	backend := &fakeBackend{}

	var out bytes.Buffer
	purger := NewPurger(nil, true, backend, backend, nil)
	purger.SetOutput(&out)

	summary, err := purger.Run(scan.NewScanner(backend, 100, nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.FilesFound != 0 {
		t.Errorf("Expected 0 files, got %d", summary.FilesFound)
	}
	if len(backend.blobCalls) != 0 || len(backend.gradeRowCalls) != 0 {
		t.Errorf("Deletions occurred on empty scan")
	}
	if !strings.Contains(out.String(), "No orphaned files found.") {
		t.Errorf("Summary wording wrong:\n%s", out.String())
	}
}

// TestFixDedupesOwners proves grade ids {5, 5, 7} trigger one relational
// cleanup naming each owner exactly once
func TestFixDedupesOwners(t *testing.T) {
	backend := &fakeBackend{
		remaining: []scan.Record{
			record(1, 5, "pages", 100),
			record(2, 5, "combined", 100),
			record(3, 7, "download", 100),
		},
		gradeRowsPerID: 3,
	}

	var out bytes.Buffer
	purger := NewPurger(nil, true, backend, backend, nil)
	purger.SetOutput(&out)

	summary, err := purger.Run(scan.NewScanner(backend, 100, nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(backend.gradeRowCalls) != 1 {
		t.Fatalf("Expected exactly 1 grade cleanup call, got %d", len(backend.gradeRowCalls))
	}
	ids := backend.gradeRowCalls[0]
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 7 {
		t.Errorf("Expected sorted deduplicated owners [5 7], got %v", ids)
	}
	if summary.GradeRowsDeleted != 6 {
		t.Errorf("Expected 6 dependent rows deleted, got %d", summary.GradeRowsDeleted)
	}
	if !strings.Contains(out.String(), "Found 3 orphaned files, deleted and freed up 300 bytes.") {
		t.Errorf("Fix summary wording wrong:\n%s", out.String())
	}
}

// TestFixModeShrinkingSet proves a fix run over more records than one page
// still purges everything (offset pinned while the set shrinks)
func TestFixModeShrinkingSet(t *testing.T) {
	var records []scan.Record
	for i := int64(1); i <= 150; i++ {
		records = append(records, record(i, i, "pages", 10))
	}
	backend := &fakeBackend{remaining: records}

	var out bytes.Buffer
	purger := NewPurger(nil, true, backend, backend, nil)
	purger.SetOutput(&out)

	summary, err := purger.Run(scan.NewScanner(backend, 100, nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.FilesFound != 150 {
		t.Errorf("Expected 150 files purged, got %d", summary.FilesFound)
	}
	if len(backend.remaining) != 0 {
		t.Errorf("Expected no records left, got %d", len(backend.remaining))
	}
	if len(backend.blobCalls) != 150 {
		t.Errorf("Expected 150 blob deletions, got %d", len(backend.blobCalls))
	}
}

// TestBlobFailureHaltsRun proves a failed blob deletion halts the run and
// relational cleanup never happens — the audit trail for files still on
// disk must survive
func TestBlobFailureHaltsRun(t *testing.T) {
	backend := &fakeBackend{
		remaining: []scan.Record{
			record(1, 5, "pages", 100),
			record(2, 7, "pages", 100),
			record(3, 9, "pages", 100),
		},
		blobFailItemID: 7,
	}

	var out bytes.Buffer
	purger := NewPurger(nil, true, backend, backend, nil)
	purger.SetOutput(&out)

	_, err := purger.Run(scan.NewScanner(backend, 100, nil))
	if err == nil {
		t.Fatal("Expected run to fail on blob deletion error")
	}

	if len(backend.gradeRowCalls) != 0 {
		t.Errorf("Relational cleanup ran after blob failure: %v", backend.gradeRowCalls)
	}
	// Grade 7's file rows must survive so the next run finds it again
	found := false
	for _, r := range backend.remaining {
		if r.ItemID == 7 {
			found = true
		}
	}
	if !found {
		t.Error("Failed record's metadata rows were removed")
	}
}
