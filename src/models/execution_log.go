package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionLogEntry is the append-only audit record of one rule evaluation
// against one transaction. Rule and transaction references are weak: the
// entry survives deletion of either.
type ExecutionLogEntry struct {
	ID            int64            `json:"id"`
	RunID         uuid.UUID        `json:"run_id"`
	RuleID        *int64           `json:"rule_id"`
	TransactionID *int64           `json:"transaction_id"`
	Matched       bool             `json:"matched"`
	Actions       []string         `json:"actions"`
	Context       ExecutionContext `json:"context"`
	CreatedAt     time.Time        `json:"created_at"`
}

type ExecutionContext struct {
	Trigger    TriggerKind `json:"trigger"`
	DryRun     bool        `json:"dry_run"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// RuleStats aggregates execution log entries for one rule over a window.
type RuleStats struct {
	RuleID          int64      `json:"rule_id"`
	WindowDays      int        `json:"window_days"`
	TotalExecutions int64      `json:"total_executions"`
	TotalMatches    int64      `json:"total_matches"`
	MatchRate       float64    `json:"match_rate"`
	LastMatched     *time.Time `json:"last_matched"`
	LastExecuted    *time.Time `json:"last_executed"`
}
