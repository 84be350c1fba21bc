package main

// Reclaim orphan resume blobs (blobs with no referencing version row):
//   go run ./cmd/sweep [-dry-run]
// Intended to run periodically, e.g. from cron.

import (
	"context"
	"flag"
	"log"
	"os"

	"trackit-backend/internal/bootstrap"
	"trackit-backend/internal/shared/config"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report orphan blobs without deleting them")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required: the sweep compares blobs against version rows")
		os.Exit(1)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Printf("bootstrap: %v", err)
		os.Exit(1)
	}
	if app.DB == nil {
		log.Printf("database connection required for sweep")
		os.Exit(1)
	}
	defer app.DB.Close()

	app.Sweeper.DryRun = *dryRun
	report, err := app.Sweeper.Run(context.Background())
	if err != nil {
		log.Printf("sweep failed: %v", err)
		os.Exit(1)
	}

	log.Printf("sweep: scanned=%d referenced=%d deleted=%d skipped=%d failed=%d dry_run=%v",
		report.Scanned, report.Referenced, len(report.Deleted), len(report.Skipped), len(report.Failed), *dryRun)
}
