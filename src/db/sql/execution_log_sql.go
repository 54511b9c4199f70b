package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

// InsertExecutionLog appends one audit entry. Entries are never updated.
func InsertExecutionLog(ctx context.Context, pool *pgxpool.Pool, entry *models.ExecutionLogEntry) error {
	actions, err := json.Marshal(entry.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	execCtx, err := json.Marshal(entry.Context)
	if err != nil {
		return fmt.Errorf("failed to encode execution context: %w", err)
	}
	query := `
		INSERT INTO rule_execution_logs (run_id, rule_id, transaction_id, matched, actions, context)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = pool.Exec(ctx, query, entry.RunID, entry.RuleID, entry.TransactionID, entry.Matched, actions, execCtx)
	return err
}

func GetExecutionLogsForRule(ctx context.Context, pool *pgxpool.Pool, userID, ruleID int64, limit int) ([]models.ExecutionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT l.id, l.run_id, l.rule_id, l.transaction_id, l.matched, l.actions, l.context, l.created_at
		FROM rule_execution_logs l
		JOIN rules r ON l.rule_id = r.id
		WHERE l.rule_id = $1 AND r.user_id = $2
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $3
	`
	rows, err := pool.Query(ctx, query, ruleID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ExecutionLogEntry
	for rows.Next() {
		var e models.ExecutionLogEntry
		var actions, execCtx []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.RuleID, &e.TransactionID, &e.Matched, &actions, &execCtx, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actions, &e.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions for log %d: %w", e.ID, err)
		}
		if err := json.Unmarshal(execCtx, &e.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context for log %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetRuleStats aggregates a rule's execution log over a trailing window.
// Dry runs are excluded so test evaluations do not skew the match rate.
func GetRuleStats(ctx context.Context, pool *pgxpool.Pool, userID, ruleID int64, windowDays int) (*models.RuleStats, error) {
	if windowDays <= 0 {
		windowDays = 30
	}

	// ownership check first so a foreign rule id reads as not-found
	var owned bool
	err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1 AND user_id = $2)`, ruleID, userID).Scan(&owned)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, fmt.Errorf("rule not found")
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE matched),
		       MAX(created_at) FILTER (WHERE matched),
		       MAX(created_at)
		FROM rule_execution_logs
		WHERE rule_id = $1
		  AND created_at >= NOW() - make_interval(days => $2)
		  AND (context->>'dry_run')::boolean = FALSE
	`
	stats := models.RuleStats{RuleID: ruleID, WindowDays: windowDays}
	err = pool.QueryRow(ctx, query, ruleID, windowDays).
		Scan(&stats.TotalExecutions, &stats.TotalMatches, &stats.LastMatched, &stats.LastExecuted)
	if err != nil {
		return nil, err
	}
	if stats.TotalExecutions > 0 {
		stats.MatchRate = float64(stats.TotalMatches) / float64(stats.TotalExecutions)
	}
	return &stats, nil
}

// PurgeExecutionLogs drops entries older than the retention window and
// returns how many were removed.
func PurgeExecutionLogs(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	cmd, err := pool.Exec(ctx,
		`DELETE FROM rule_execution_logs WHERE created_at < NOW() - make_interval(days => $1)`,
		retentionDays,
	)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
