package handlers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	cache "ledger-server/src/db"
	db "ledger-server/src/db/sql"
	"ledger-server/src/engine"
	"ledger-server/src/models"
	"ledger-server/src/notify"
)

func newEngine(pool *pgxpool.Pool, logUnmatched bool) *engine.Engine {
	return &engine.Engine{
		Store:        &db.EngineStore{Pool: pool},
		Notifier:     &notify.Sink{Pool: pool},
		Log:          &db.EngineLog{Pool: pool},
		LogUnmatched: logUnmatched,
	}
}

// loadRulesCached returns the user's full rule set, served from the rule
// cache when possible. Rule CRUD clears the cache.
func loadRulesCached(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Rule, error) {
	cacheKey := fmt.Sprintf("rules:%d", userID)
	if v, ok := cache.GetRuleCache(cacheKey); ok {
		if rules, ok := v.([]models.Rule); ok {
			return rules, nil
		}
	}
	rules, err := db.GetAllRules(ctx, pool, userID)
	if err != nil {
		return nil, err
	}
	cache.SetRuleCache(cacheKey, rules)
	return rules, nil
}

// runTriggeredRules fires the rule engine for transactions that were just
// created or updated. Used by the transaction handlers and the Plaid sync
// path.
func runTriggeredRules(ctx context.Context, pool *pgxpool.Pool, userID int64, txns []models.Transaction, trigger models.TriggerKind, logUnmatched bool) (*engine.RunResult, error) {
	if len(txns) == 0 {
		return &engine.RunResult{Trigger: trigger}, nil
	}
	rules, err := loadRulesCached(ctx, pool, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	eng := newEngine(pool, logUnmatched)
	result, err := eng.Evaluate(ctx, userID, txns, rules, engine.Selector{}, engine.Options{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	if result.Matched > 0 {
		cache.ClearAllTransactionCaches()
	}
	return result, nil
}
