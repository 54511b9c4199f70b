package jobs

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	db "ledger-server/src/db/sql"
)

// StartRetentionJob schedules a nightly purge of execution log entries past
// the retention window. Returns the scheduler so main can stop it on
// shutdown.
func StartRetentionJob(pool *pgxpool.Pool, retentionDays int) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		removed, err := db.PurgeExecutionLogs(ctx, pool, retentionDays)
		if err != nil {
			log.Printf("ERROR: Failed to purge execution logs: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("INFO: Purged %d execution log entries older than %d days", removed, retentionDays)
		}
	})
	if err != nil {
		log.Fatalf("failed to schedule retention job: %v", err)
	}
	c.Start()
	return c
}
