package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"orphan-sweep/internal/scan"
)

// Audit actions recorded per scanned file.
const (
	ActionDelete = "DELETE"
	ActionDryRun = "DRY_RUN"
	ActionError  = "ERROR"
)

// PurgeDB manages the SQLite database holding purge history
type PurgeDB struct {
	db *sql.DB
}

// PurgeRecord represents a single audit event
type PurgeRecord struct {
	ID           int64
	Timestamp    time.Time
	Action       string
	ContextID    int64
	Component    string
	FileArea     string
	ItemID       int64
	Filename     string
	Size         int64
	ErrorMessage string
	CreatedAt    time.Time
}

// NewPurgeDB creates a new database connection and initializes schema
func NewPurgeDB(dbPath string) (*PurgeDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// file: prefix with _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Test connection with a query so the file is created if missing
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Enable WAL mode for better concurrency (multiple readers, one writer)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	pdb := &PurgeDB{db: db}
	if err = pdb.initSchema(); err != nil {
		return nil, err
	}

	// Clear the deferred error handler since we succeeded
	err = nil
	return pdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *PurgeDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS purges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		contextid INTEGER NOT NULL,
		component TEXT NOT NULL,
		filearea TEXT NOT NULL,
		itemid INTEGER NOT NULL,
		file_name TEXT,
		size INTEGER NOT NULL,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON purges(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON purges(action);
	CREATE INDEX IF NOT EXISTS idx_filearea ON purges(filearea);
	CREATE INDEX IF NOT EXISTS idx_itemid ON purges(itemid);
	CREATE INDEX IF NOT EXISTS idx_size ON purges(size);
	CREATE INDEX IF NOT EXISTS idx_created_at ON purges(created_at);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordEvent inserts one audit event into the database
func (d *PurgeDB) RecordEvent(action string, rec scan.Record, errorMsg string) error {
	query := `
	INSERT INTO purges (
		timestamp, action, contextid, component, filearea, itemid,
		file_name, size, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		time.Now().UTC(),
		action,
		rec.ContextID,
		rec.Component,
		rec.FileArea,
		rec.ItemID,
		rec.Filename,
		rec.Filesize,
		errorMsg,
	)

	return err
}

// Close closes the database connection
func (d *PurgeDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *PurgeDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *PurgeDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	err := d.db.QueryRow("SELECT COUNT(*) FROM purges").Scan(&totalRecords)
	if err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	var pageCount, pageSize int64
	err = d.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	if err != nil {
		return nil, err
	}
	err = d.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	if err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	return stats, nil
}
