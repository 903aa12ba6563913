package database

import (
	"database/sql"
	"time"
)

const selectColumns = `
	SELECT id, timestamp, action, contextid, component, filearea, itemid,
	       file_name, size, error_message
	FROM purges
	`

// GetRecentEvents returns the N most recent audit events
func (d *PurgeDB) GetRecentEvents(limit int) ([]PurgeRecord, error) {
	query := selectColumns + `
	ORDER BY timestamp DESC
	LIMIT ?
	`

	return d.queryEvents(query, limit)
}

// GetEventsByAction returns events filtered by action type
func (d *PurgeDB) GetEventsByAction(action string) ([]PurgeRecord, error) {
	query := selectColumns + `
	WHERE action = ?
	ORDER BY timestamp DESC
	`

	return d.queryEvents(query, action)
}

// GetEventsByArea returns events filtered by file area
func (d *PurgeDB) GetEventsByArea(fileArea string) ([]PurgeRecord, error) {
	query := selectColumns + `
	WHERE filearea = ?
	ORDER BY timestamp DESC
	`

	return d.queryEvents(query, fileArea)
}

// GetEventsByItem returns events for one owning grade id
func (d *PurgeDB) GetEventsByItem(itemID int64) ([]PurgeRecord, error) {
	query := selectColumns + `
	WHERE itemid = ?
	ORDER BY timestamp DESC
	`

	return d.queryEvents(query, itemID)
}

// GetLargestPurges returns the N largest deleted files by size
func (d *PurgeDB) GetLargestPurges(limit int) ([]PurgeRecord, error) {
	query := selectColumns + `
	WHERE action = 'DELETE'
	ORDER BY size DESC
	LIMIT ?
	`

	return d.queryEvents(query, limit)
}

// GetTotalBytesFreed returns total bytes freed in a time range
func (d *PurgeDB) GetTotalBytesFreed(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM purges
	WHERE action = 'DELETE' AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start, end).Scan(&total)
	return total, err
}

// GetEventCountByArea returns count of deleted files grouped by file area
func (d *PurgeDB) GetEventCountByArea() (map[string]int, error) {
	query := `
	SELECT filearea, COUNT(*)
	FROM purges
	WHERE action = 'DELETE'
	GROUP BY filearea
	`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var area string
		var count int
		if err := rows.Scan(&area, &count); err != nil {
			return nil, err
		}
		counts[area] = count
	}

	return counts, rows.Err()
}

// GetEventCountByAction returns count of events grouped by action
func (d *PurgeDB) GetEventCountByAction() (map[string]int, error) {
	query := `
	SELECT action, COUNT(*)
	FROM purges
	GROUP BY action
	`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}

	return counts, rows.Err()
}

// PurgeStats holds aggregated statistics
type PurgeStats struct {
	TotalDeleted    int
	TotalDryRun     int
	TotalErrors     int
	TotalBytesFreed int64
	ByArea          map[string]int
	ByAction        map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetPurgeStats returns comprehensive statistics for a time period
func (d *PurgeDB) GetPurgeStats(days int) (*PurgeStats, error) {
	since := time.Now().AddDate(0, 0, -days)
	now := time.Now()

	stats := &PurgeStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM purges
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeleted, &stats.TotalDryRun, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	stats.TotalBytesFreed, err = d.GetTotalBytesFreed(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByArea, err = d.GetEventCountByArea()
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetEventCountByAction()
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days (for retention)
func (d *PurgeDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`
		DELETE FROM purges WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// GetRecentEventsPaginated returns paginated recent events with total count
func (d *PurgeDB) GetRecentEventsPaginated(limit, offset int) ([]PurgeRecord, int, error) {
	var totalCount int
	err := d.db.QueryRow("SELECT COUNT(*) FROM purges").Scan(&totalCount)
	if err != nil {
		return nil, 0, err
	}

	query := selectColumns + `
	ORDER BY timestamp DESC
	LIMIT ? OFFSET ?
	`

	records, err := d.queryEvents(query, limit, offset)
	return records, totalCount, err
}

// queryEvents is a helper function to execute queries and scan results
func (d *PurgeDB) queryEvents(query string, args ...interface{}) ([]PurgeRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PurgeRecord
	for rows.Next() {
		var r PurgeRecord
		var errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Action, &r.ContextID, &r.Component,
			&r.FileArea, &r.ItemID, &r.Filename, &r.Size, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}
