package scan

import (
	"fmt"
	"log"
)

// Component is the file-store component whose orphans this tool targets.
const Component = "assignfeedback_editpdf"

// Areas lists every file area that is owned by a grade row. Files in these
// areas with no matching grade are orphans.
//
// The importhtml area is deliberately absent: those files hang off a draft
// import workflow with a different ownership relationship and must never be
// treated as orphaned here.
var Areas = []string{
	"download",
	"combined",
	"partial",
	"pages",
	"readonlypages",
}

// Record describes one candidate file row produced by a scan page.
type Record struct {
	ID        int64
	ContextID int64
	Component string
	FileArea  string
	ItemID    int64 // grade id the area is scoped to
	Filename  string
	Filesize  int64
}

// Source fetches one page of orphaned file records, ordered by file id.
// An empty page signals the end of the result set.
type Source interface {
	OrphanedPage(offset, limit int) ([]Record, error)
}

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 100

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
}

// stdLogger wraps standard log.Logger to implement Logger interface
type stdLogger struct {
	*log.Logger
}

func (l *stdLogger) Info(msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, "[INFO]", msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Scanner enumerates orphaned file records page by page.
type Scanner struct {
	source   Source
	pageSize int
	logger   Logger
}

// NewScanner creates a Scanner over the given source.
func NewScanner(source Source, pageSize int, logger *log.Logger) *Scanner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{
		source:   source,
		pageSize: pageSize,
		logger:   &stdLogger{Logger: logger},
	}
}

// Each invokes fn for every orphaned record, fetching pages until one comes
// back empty.
//
// The destructive flag controls how the offset moves between pages. When the
// caller deletes each record as it is consumed, the rows stop matching the
// orphan filter and the remaining result set shifts down — so the next page
// must be read from offset 0 or rows would be skipped. Only a pure reporting
// pass, which leaves the result set intact, advances the offset by pageSize.
//
// A non-nil error from fn aborts the scan immediately.
func (s *Scanner) Each(destructive bool, fn func(Record) error) error {
	offset := 0
	pages := 0

	for {
		page, err := s.source.OrphanedPage(offset, s.pageSize)
		if err != nil {
			return fmt.Errorf("fetch orphan page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		pages++

		for _, rec := range page {
			if err := fn(rec); err != nil {
				return err
			}
		}

		if !destructive {
			offset += s.pageSize
		}
	}

	s.logger.Info("Orphan scan complete", "pages", pages)
	return nil
}
