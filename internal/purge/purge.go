package purge

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"orphan-sweep/internal/database"
	"orphan-sweep/internal/metrics"
	"orphan-sweep/internal/scan"

	"github.com/prometheus/client_golang/prometheus"
)

// PurgeLogger interface for structured logging in purge
type PurgeLogger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// purgeStdLogger wraps standard log.Logger to implement PurgeLogger interface
type purgeStdLogger struct {
	*log.Logger
}

func (l *purgeStdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *purgeStdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *purgeStdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Metrics interface for purge metrics
type Metrics interface {
	OrphansFoundTotal() prometheus.Counter
	FilesDeletedTotal() prometheus.Counter
	BytesFreedTotal() prometheus.Counter
	GradeRowsDeletedTotal() prometheus.Counter
	ErrorsTotal() prometheus.Counter
}

// purgeMetrics wraps global metrics to implement Metrics interface
type purgeMetrics struct{}

func (m *purgeMetrics) OrphansFoundTotal() prometheus.Counter {
	return metrics.OrphansFoundTotal
}

func (m *purgeMetrics) FilesDeletedTotal() prometheus.Counter {
	return metrics.FilesDeletedTotal
}

func (m *purgeMetrics) BytesFreedTotal() prometheus.Counter {
	return metrics.BytesFreedTotal
}

func (m *purgeMetrics) GradeRowsDeletedTotal() prometheus.Counter {
	return metrics.GradeRowsDeletedTotal
}

func (m *purgeMetrics) ErrorsTotal() prometheus.Counter {
	return metrics.ErrorsTotal
}

// BlobStore deletes every blob held for one file-area tuple. Deleting a
// tuple that no longer has blobs must be a no-op.
type BlobStore interface {
	DeleteAreaFiles(contextID int64, component, fileArea string, itemID int64) error
}

// MetaStore covers the relational deletions a fix run performs.
type MetaStore interface {
	DeleteAreaRows(contextID int64, component, fileArea string, itemID int64) (int64, error)
	DeleteGradeRows(gradeIDs []int64) (int64, error)
}

// Summary is the result of one run, finalized after the scan completes.
type Summary struct {
	FilesFound       int
	BytesFound       int64
	FixMode          bool
	GradeRowsDeleted int64
}

// Purger orchestrates scan, blob deletion, relational cleanup, and the
// final report.
type Purger struct {
	logger  PurgeLogger
	metrics Metrics
	out     io.Writer // user-facing report lines
	fix     bool
	blobs   BlobStore
	meta    MetaStore
	db      *database.PurgeDB // audit history, optional

	// grade ids collected from successfully purged files, deduplicated
	owners map[int64]struct{}
}

// NewPurger creates a Purger. db may be nil when no audit database is
// configured.
func NewPurger(logger *log.Logger, fix bool, blobs BlobStore, meta MetaStore, db *database.PurgeDB) *Purger {
	purgeLogger := &purgeStdLogger{Logger: logger}
	if logger == nil {
		purgeLogger.Logger = log.Default()
	}
	return &Purger{
		logger:  purgeLogger,
		metrics: &purgeMetrics{},
		out:     os.Stdout,
		fix:     fix,
		blobs:   blobs,
		meta:    meta,
		db:      db,
		owners:  make(map[int64]struct{}),
	}
}

// SetOutput redirects the report lines. Tests use this to assert wording.
func (p *Purger) SetOutput(w io.Writer) {
	p.out = w
}

// Run drives one full pass: scan every orphaned record, purge each one in
// fix mode, then delete the dependent rows for every collected owner and
// print the summary.
//
// Any store or blob failure halts the run. That is safe: file-metadata rows
// are only removed after their blobs, so a re-run finds whatever is left.
// Relational cleanup is skipped entirely on a halted run — it must never
// touch an owner whose files may still exist on disk.
func (p *Purger) Run(scanner *scan.Scanner) (Summary, error) {
	summary := Summary{FixMode: p.fix}

	err := scanner.Each(p.fix, func(rec scan.Record) error {
		summary.FilesFound++
		summary.BytesFound += rec.Filesize
		p.metrics.OrphansFoundTotal().Inc()

		fmt.Fprintf(p.out, "Found orphaned file: contextid=%d area=%s itemid=%d %s (%d bytes)\n",
			rec.ContextID, rec.FileArea, rec.ItemID, rec.Filename, rec.Filesize)

		if !p.fix {
			p.recordAudit(database.ActionDryRun, rec, "")
			return nil
		}
		return p.purgeRecord(rec)
	})
	if err != nil {
		p.metrics.ErrorsTotal().Inc()
		return summary, err
	}

	if p.fix {
		rows, err := p.cleanupGradeRows()
		if err != nil {
			p.metrics.ErrorsTotal().Inc()
			return summary, err
		}
		summary.GradeRowsDeleted = rows
	}

	p.report(summary)
	return summary, nil
}

// purgeRecord deletes the blobs for the record's area tuple, then its
// file-metadata rows, and collects the owning grade id. The owner is added
// only after both deletions succeed.
func (p *Purger) purgeRecord(rec scan.Record) error {
	if err := p.blobs.DeleteAreaFiles(rec.ContextID, rec.Component, rec.FileArea, rec.ItemID); err != nil {
		p.logger.Error("Failed to delete blobs", "contextid", rec.ContextID, "area", rec.FileArea, "itemid", rec.ItemID, "error", err)
		p.recordAudit(database.ActionError, rec, err.Error())
		return fmt.Errorf("delete blobs for item %d area %s: %w", rec.ItemID, rec.FileArea, err)
	}

	if _, err := p.meta.DeleteAreaRows(rec.ContextID, rec.Component, rec.FileArea, rec.ItemID); err != nil {
		p.logger.Error("Failed to delete file rows", "contextid", rec.ContextID, "area", rec.FileArea, "itemid", rec.ItemID, "error", err)
		p.recordAudit(database.ActionError, rec, err.Error())
		return fmt.Errorf("delete file rows for item %d area %s: %w", rec.ItemID, rec.FileArea, err)
	}

	p.owners[rec.ItemID] = struct{}{}
	p.recordAudit(database.ActionDelete, rec, "")

	p.metrics.FilesDeletedTotal().Inc()
	p.metrics.BytesFreedTotal().Add(float64(rec.Filesize))
	return nil
}

// cleanupGradeRows deletes the dependent annotation, comment, and rotation
// rows for every collected owner, exactly once per owner.
func (p *Purger) cleanupGradeRows() (int64, error) {
	if len(p.owners) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(p.owners))
	for id := range p.owners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows, err := p.meta.DeleteGradeRows(ids)
	if err != nil {
		return rows, fmt.Errorf("delete dependent grade rows: %w", err)
	}

	p.logger.Info("Dependent rows removed", "grades", len(ids), "rows", rows)
	p.metrics.GradeRowsDeletedTotal().Add(float64(rows))
	return rows, nil
}

func (p *Purger) report(summary Summary) {
	switch {
	case summary.FilesFound == 0:
		fmt.Fprintln(p.out, "No orphaned files found.")
	case summary.FixMode:
		fmt.Fprintf(p.out, "Found %d orphaned files, deleted and freed up %d bytes.\n",
			summary.FilesFound, summary.BytesFound)
	default:
		fmt.Fprintf(p.out, "Found %d orphaned files, freeing up %d bytes.\n",
			summary.FilesFound, summary.BytesFound)
		fmt.Fprintln(p.out, "Run 'orphan-sweep --fix' to delete them.")
	}
}

func (p *Purger) recordAudit(action string, rec scan.Record, errorMsg string) {
	if p.db == nil {
		return
	}
	if err := p.db.RecordEvent(action, rec, errorMsg); err != nil {
		// Don't fail the purge if the audit write fails
		p.logger.Error("Failed to record to audit database", "error", err)
	}
}
