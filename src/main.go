package main

import (
	"log"
	"net/http"

	"ledger-server/src/api"
	"ledger-server/src/config"
	"ledger-server/src/db"
	"ledger-server/src/jobs"
	"ledger-server/src/plaid"
)

func main() {
	cfg := config.Load()

	// Connect to database
	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer pool.Close()

	db.InitCache()

	plaidClient := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)

	if cfg.ExecutionLogRetentionDays > 0 {
		retention := jobs.StartRetentionJob(pool, cfg.ExecutionLogRetentionDays)
		defer retention.Stop()
	}

	router := api.NewRouter(pool, plaidClient, cfg)

	log.Println("API server running on port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}
