package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	DemoMode bool

	// RuleLogUnmatched controls whether evaluations that did not match any
	// rule still get an execution log row.
	RuleLogUnmatched bool

	// ExecutionLogRetentionDays is how long execution log rows are kept
	// before the nightly purge removes them. Zero disables the purge.
	ExecutionLogRetentionDays int
}

func Load() Config {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      getEnv("PLAID_ENV", "sandbox"),

		DemoMode: getEnvBool("DEMO_MODE", false),

		RuleLogUnmatched:          getEnvBool("RULE_LOG_UNMATCHED", false),
		ExecutionLogRetentionDays: getEnvInt("EXECUTION_LOG_RETENTION_DAYS", 90),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Fatalf("Invalid boolean for %s: %q", key, value)
		}
		return parsed
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Fatalf("Invalid integer for %s: %q", key, value)
		}
		return parsed
	}
	return fallback
}
