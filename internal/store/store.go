package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"orphan-sweep/internal/scan"
)

// Store is the relational metadata client. It serves the orphan page query
// and the row deletions the purge performs: file-metadata rows per area
// tuple, and the dependent per-grade rows after blob cleanup.
type Store struct {
	db     *sql.DB
	prefix string
}

// Dependent tables keyed by grade id, cleaned up once per owner at the end
// of a fix run.
var gradeTables = []string{
	"editpdf_annotations",
	"editpdf_comments",
	"editpdf_rotations",
}

// Open opens the metadata database. The prefix is prepended to every table
// name (shared-host deployments prefix all application tables).
func Open(dbPath, prefix string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize metadata database (check permissions on %s): %w", dbPath, err)
	}

	// WAL mode for better concurrency (multiple readers, one writer)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	err = nil
	return &Store{db: db, prefix: prefix}, nil
}

// NewWithDB wraps an already open database handle. Used by tests and by the
// audit query tool when it shares a connection.
func NewWithDB(db *sql.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

func (s *Store) table(name string) string {
	return s.prefix + name
}

// OrphanedPage implements scan.Source. It returns one page of file rows in
// the targeted component and areas whose item id matches no grade row,
// ordered by file id so paginated fetches are stable.
func (s *Store) OrphanedPage(offset, limit int) ([]scan.Record, error) {
	areaParams := strings.TrimRight(strings.Repeat("?,", len(scan.Areas)), ",")

	query := fmt.Sprintf(`
	SELECT f.id, f.contextid, f.component, f.filearea, f.itemid, f.filename, f.filesize
	FROM %s f
	LEFT JOIN %s g ON g.id = f.itemid
	WHERE f.component = ? AND f.filearea IN (%s) AND g.id IS NULL
	ORDER BY f.id
	LIMIT ? OFFSET ?
	`, s.table("files"), s.table("grades"), areaParams)

	args := make([]interface{}, 0, len(scan.Areas)+3)
	args = append(args, scan.Component)
	for _, area := range scan.Areas {
		args = append(args, area)
	}
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []scan.Record
	for rows.Next() {
		var r scan.Record
		if err := rows.Scan(&r.ID, &r.ContextID, &r.Component, &r.FileArea, &r.ItemID, &r.Filename, &r.Filesize); err != nil {
			return nil, err
		}
		page = append(page, r)
	}

	return page, rows.Err()
}

// DeleteAreaRows removes the file-metadata rows for one (context, component,
// area, item) tuple. Deleting an already-deleted tuple affects zero rows and
// is not an error, so a fix run can be safely repeated.
func (s *Store) DeleteAreaRows(contextID int64, component, fileArea string, itemID int64) (int64, error) {
	query := fmt.Sprintf(`
	DELETE FROM %s
	WHERE contextid = ? AND component = ? AND filearea = ? AND itemid = ?
	`, s.table("files"))

	result, err := s.db.Exec(query, contextID, component, fileArea, itemID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteGradeRows removes the dependent annotation, comment, and rotation
// rows for every given grade id. Ids are deduplicated and sorted before the
// delete so each owner is cleaned exactly once, in a deterministic order.
func (s *Store) DeleteGradeRows(gradeIDs []int64) (int64, error) {
	ids := dedupeSorted(gradeIDs)
	if len(ids) == 0 {
		return 0, nil
	}

	params := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var total int64
	for _, tbl := range gradeTables {
		query := fmt.Sprintf("DELETE FROM %s WHERE gradeid IN (%s)", s.table(tbl), params)
		result, err := s.db.Exec(query, args...)
		if err != nil {
			return total, fmt.Errorf("delete %s rows: %w", tbl, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}

	return total, nil
}

func dedupeSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
