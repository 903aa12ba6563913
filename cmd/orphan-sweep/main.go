package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"orphan-sweep/internal/blobstore"
	"orphan-sweep/internal/config"
	"orphan-sweep/internal/database"
	"orphan-sweep/internal/exitcodes"
	"orphan-sweep/internal/logging"
	"orphan-sweep/internal/metrics"
	"orphan-sweep/internal/purge"
	"orphan-sweep/internal/scan"
	"orphan-sweep/internal/store"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "/etc/orphan-sweep/config.yaml", "Path to configuration file")
	var fix bool
	flag.BoolVar(&fix, "fix", false, "Delete orphaned files and their dependent rows (default: report only)")
	flag.BoolVar(&fix, "f", false, "Shorthand for -fix")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config: %v\n", err)
		os.Exit(exitcodes.InvalidConfig)
	}

	// Initialize logger
	logger := logging.NewWithConfig(cfg)

	logger.Printf("Orphan sweep starting (component %s)", scan.Component)
	logger.Printf("Config file: %s", *configPath)
	if !fix {
		logger.Println("DRY RUN MODE: No files will be deleted")
	}

	// Initialize metrics (Prometheus)
	metrics.Init()
	if cfg.Prometheus.Port > 0 {
		addr := cfg.PrometheusAddress()
		logger.Printf("Starting Prometheus metrics on %s", addr)
		metrics.StartServer(addr, logger)
	}

	// Open the metadata store
	st, err := store.Open(cfg.DatabasePath, cfg.TablePrefix)
	if err != nil {
		logger.Printf("ERROR: Failed to open metadata database: %v", err)
		os.Exit(exitcodes.RuntimeError)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Printf("ERROR: Failed to close metadata database: %v", err)
		}
	}()

	// Blob store rooted at the configured files directory
	blobs, err := blobstore.New(cfg.FilesRoot)
	if err != nil {
		logger.Printf("ERROR: %v", err)
		os.Exit(exitcodes.InvalidConfig)
	}

	// Audit database for purge history
	var auditDB *database.PurgeDB
	if cfg.AuditDatabasePath != "" {
		logger.Printf("Opening audit database: %s", cfg.AuditDatabasePath)
		auditDB, err = database.NewPurgeDB(cfg.AuditDatabasePath)
		if err != nil {
			logger.Printf("ERROR: Failed to open audit database: %v", err)
			os.Exit(exitcodes.RuntimeError)
		}
		defer func() {
			if err := auditDB.Close(); err != nil {
				logger.Printf("ERROR: Failed to close audit database: %v", err)
			}
		}()
	}

	scanner := scan.NewScanner(st, cfg.PageSize, logger)
	purger := purge.NewPurger(logger, fix, blobs, st, auditDB)

	start := time.Now()
	summary, err := purger.Run(scanner)
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	metrics.LastRunTimestamp.Set(float64(time.Now().Unix()))
	if err != nil {
		logger.Printf("ERROR: Purge failed: %v", err)
		os.Exit(exitcodes.RuntimeError)
	}

	logger.Printf("Run complete: files=%d bytes=%d fix=%v", summary.FilesFound, summary.BytesFound, summary.FixMode)
}
