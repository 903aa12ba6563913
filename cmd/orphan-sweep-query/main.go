package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"orphan-sweep/internal/database"
	"orphan-sweep/internal/exitcodes"
)

func main() {
	// Parse command-line flags
	dbPath := flag.String("db", "/var/lib/orphan-sweep/purges.db", "Path to purge audit database")
	recent := flag.Int("recent", 0, "Show N most recent events")
	stats := flag.Bool("stats", false, "Show purge statistics")
	action := flag.String("action", "", "Filter by action (DELETE, DRY_RUN, ERROR)")
	area := flag.String("area", "", "Filter by file area")
	item := flag.Int64("item", 0, "Filter by owning grade id")
	largest := flag.Int("largest", 0, "Show N largest purged files")
	days := flag.Int("days", 30, "Number of days for statistics (default: 30)")
	prune := flag.Int("prune", 0, "Delete audit records older than N days and vacuum")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	// Open database
	db, err := database.NewPurgeDB(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database: %v", err)
		}
	}()

	// Handle different query modes
	switch {
	case *stats:
		showStats(db, *days, *jsonOutput)
	case *recent > 0:
		records, err := db.GetRecentEvents(*recent)
		showEvents(records, err, *jsonOutput)
	case *action != "":
		records, err := db.GetEventsByAction(*action)
		showEvents(records, err, *jsonOutput)
	case *area != "":
		records, err := db.GetEventsByArea(*area)
		showEvents(records, err, *jsonOutput)
	case *item > 0:
		records, err := db.GetEventsByItem(*item)
		showEvents(records, err, *jsonOutput)
	case *largest > 0:
		records, err := db.GetLargestPurges(*largest)
		showEvents(records, err, *jsonOutput)
	case *prune > 0:
		pruneRecords(db, *prune)
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  orphan-sweep-query --recent 10          # Show 10 most recent events")
		fmt.Println("  orphan-sweep-query --stats              # Show purge statistics")
		fmt.Println("  orphan-sweep-query --action DELETE      # Show only real deletions")
		fmt.Println("  orphan-sweep-query --area pages         # Show events for one file area")
		fmt.Println("  orphan-sweep-query --item 42            # Show events for grade 42")
		fmt.Println("  orphan-sweep-query --largest 10         # Show 10 largest purged files")
		fmt.Println("  orphan-sweep-query --prune 90           # Trim audit records older than 90 days")
		os.Exit(exitcodes.InvalidConfig)
	}
}

func showStats(db *database.PurgeDB, days int, jsonOutput bool) {
	stats, err := db.GetPurgeStats(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to get statistics: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Purge Statistics (Last %d days)\n", days)
	fmt.Printf("Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Printf("Files Deleted:    %d\n", stats.TotalDeleted)
	fmt.Printf("Dry-Run Finds:    %d\n", stats.TotalDryRun)
	fmt.Printf("Errors:           %d\n", stats.TotalErrors)
	fmt.Printf("Bytes Freed:      %s\n\n", formatBytes(stats.TotalBytesFreed))

	if len(stats.ByArea) > 0 {
		fmt.Println("Deleted By Area:")
		for area, count := range stats.ByArea {
			fmt.Printf("  %-15s %d\n", area, count)
		}
		fmt.Println()
	}

	if len(stats.ByAction) > 0 {
		fmt.Println("By Action:")
		for action, count := range stats.ByAction {
			fmt.Printf("  %-15s %d\n", action, count)
		}
	}
}

func showEvents(records []database.PurgeRecord, err error, jsonOutput bool) {
	if err != nil {
		log.Fatalf("ERROR: Query failed: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(records) == 0 {
		fmt.Println("No matching events.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tACTION\tCONTEXT\tAREA\tITEM\tFILE\tSIZE\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Action,
			r.ContextID,
			r.FileArea,
			r.ItemID,
			r.Filename,
			formatBytes(r.Size),
			r.ErrorMessage,
		)
	}
	w.Flush()
}

func pruneRecords(db *database.PurgeDB, days int) {
	removed, err := db.DeleteOldRecords(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to prune records: %v", err)
	}
	if err := db.Vacuum(); err != nil {
		log.Fatalf("ERROR: Failed to vacuum database: %v", err)
	}
	fmt.Printf("Removed %d audit records older than %d days.\n", removed, days)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
