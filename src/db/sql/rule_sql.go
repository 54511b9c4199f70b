package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

// Rules form a strict ownership aggregate: rule -> condition groups ->
// conditions, and rule -> actions. Nested collections are written inside one
// database transaction, deleted by cascade, and deep-copied on duplicate.

func CreateRule(ctx context.Context, pool *pgxpool.Pool, rule *models.Rule) (*models.Rule, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rules (user_id, group_id, name, description, trigger_kind, stop_processing, sort_order, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var ruleID int64
	err = tx.QueryRow(ctx, query,
		rule.UserID, rule.GroupID, rule.Name, rule.Description,
		rule.Trigger, rule.StopProcessing, rule.Order, rule.Active,
	).Scan(&ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rule: %w", err)
	}

	if err := insertRuleNested(ctx, tx, ruleID, rule.ConditionGroups, rule.Actions); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return GetRuleByID(ctx, pool, rule.UserID, ruleID)
}

// UpdateRule fully replaces the nested collections: the old condition groups
// and actions are dropped and the payload's are written in their place.
func UpdateRule(ctx context.Context, pool *pgxpool.Pool, rule *models.Rule) (*models.Rule, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE rules
		SET group_id = $1, name = $2, description = $3, trigger_kind = $4,
		    stop_processing = $5, sort_order = $6, active = $7, updated_at = NOW()
		WHERE id = $8 AND user_id = $9
	`
	cmd, err := tx.Exec(ctx, query,
		rule.GroupID, rule.Name, rule.Description, rule.Trigger,
		rule.StopProcessing, rule.Order, rule.Active, rule.ID, rule.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("rule not found")
	}

	// conditions go with their groups via ON DELETE CASCADE
	if _, err := tx.Exec(ctx, `DELETE FROM rule_condition_groups WHERE rule_id = $1`, rule.ID); err != nil {
		return nil, fmt.Errorf("failed to clear condition groups: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM rule_actions WHERE rule_id = $1`, rule.ID); err != nil {
		return nil, fmt.Errorf("failed to clear actions: %w", err)
	}

	if err := insertRuleNested(ctx, tx, rule.ID, rule.ConditionGroups, rule.Actions); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return GetRuleByID(ctx, pool, rule.UserID, rule.ID)
}

func DeleteRule(ctx context.Context, pool *pgxpool.Pool, userID, ruleID int64) error {
	cmd, err := pool.Exec(ctx, `DELETE FROM rules WHERE id = $1 AND user_id = $2`, ruleID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

// DuplicateRule deep-copies a rule and every nested entity under a new name,
// producing fresh identities for the whole aggregate.
func DuplicateRule(ctx context.Context, pool *pgxpool.Pool, userID, ruleID int64, newName string) (*models.Rule, error) {
	src, err := GetRuleByID(ctx, pool, userID, ruleID)
	if err != nil {
		return nil, err
	}
	if newName == "" {
		newName = src.Name + " (copy)"
	}
	dup := *src
	dup.ID = 0
	dup.Name = newName
	return CreateRule(ctx, pool, &dup)
}

func GetRuleByID(ctx context.Context, pool *pgxpool.Pool, userID, ruleID int64) (*models.Rule, error) {
	rules, err := loadRules(ctx, pool, userID, &ruleID)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule not found")
	}
	return &rules[0], nil
}

func GetAllRules(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Rule, error) {
	return loadRules(ctx, pool, userID, nil)
}

func insertRuleNested(ctx context.Context, tx pgx.Tx, ruleID int64, groups []models.ConditionGroup, actions []models.Action) error {
	for _, g := range groups {
		var groupID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO rule_condition_groups (rule_id, logic, sort_order) VALUES ($1, $2, $3) RETURNING id`,
			ruleID, g.Logic, g.Order,
		).Scan(&groupID)
		if err != nil {
			return fmt.Errorf("failed to insert condition group: %w", err)
		}
		for _, c := range g.Conditions {
			_, err := tx.Exec(ctx, `
				INSERT INTO rule_conditions (group_id, field, operator, value, case_sensitive, negate, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				groupID, c.Field, c.Operator, c.Value, c.CaseSensitive, c.Negate, c.Order,
			)
			if err != nil {
				return fmt.Errorf("failed to insert condition: %w", err)
			}
		}
	}
	for _, a := range actions {
		_, err := tx.Exec(ctx, `
			INSERT INTO rule_actions (rule_id, action_type, value, sort_order, stop_processing)
			VALUES ($1, $2, $3, $4, $5)`,
			ruleID, a.Type, a.Value, a.Order, a.StopProcessing,
		)
		if err != nil {
			return fmt.Errorf("failed to insert action: %w", err)
		}
	}
	return nil
}

// loadRules assembles full rule aggregates, either one rule or all of a
// user's rules ordered for evaluation.
func loadRules(ctx context.Context, pool *pgxpool.Pool, userID int64, ruleID *int64) ([]models.Rule, error) {
	query := `
		SELECT id, user_id, group_id, name, description, trigger_kind, stop_processing, sort_order, active, created_at, updated_at
		FROM rules
		WHERE user_id = $1 AND ($2::bigint IS NULL OR id = $2)
		ORDER BY sort_order, id
	`
	rows, err := pool.Query(ctx, query, userID, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.Rule
	index := make(map[int64]int)
	for rows.Next() {
		var r models.Rule
		err := rows.Scan(&r.ID, &r.UserID, &r.GroupID, &r.Name, &r.Description,
			&r.Trigger, &r.StopProcessing, &r.Order, &r.Active, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, err
		}
		index[r.ID] = len(rules)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return rules, nil
	}

	groupQuery := `
		SELECT g.id, g.rule_id, g.logic, g.sort_order
		FROM rule_condition_groups g
		JOIN rules r ON g.rule_id = r.id
		WHERE r.user_id = $1 AND ($2::bigint IS NULL OR r.id = $2)
		ORDER BY g.sort_order, g.id
	`
	groupRows, err := pool.Query(ctx, groupQuery, userID, ruleID)
	if err != nil {
		return nil, err
	}
	defer groupRows.Close()

	groupIndex := make(map[int64]struct {
		rule  int
		group int
	})
	for groupRows.Next() {
		var g models.ConditionGroup
		if err := groupRows.Scan(&g.ID, &g.RuleID, &g.Logic, &g.Order); err != nil {
			return nil, err
		}
		ri, ok := index[g.RuleID]
		if !ok {
			continue
		}
		groupIndex[g.ID] = struct {
			rule  int
			group int
		}{ri, len(rules[ri].ConditionGroups)}
		rules[ri].ConditionGroups = append(rules[ri].ConditionGroups, g)
	}
	if err := groupRows.Err(); err != nil {
		return nil, err
	}

	condQuery := `
		SELECT c.id, c.group_id, c.field, c.operator, c.value, c.case_sensitive, c.negate, c.sort_order
		FROM rule_conditions c
		JOIN rule_condition_groups g ON c.group_id = g.id
		JOIN rules r ON g.rule_id = r.id
		WHERE r.user_id = $1 AND ($2::bigint IS NULL OR r.id = $2)
		ORDER BY c.sort_order, c.id
	`
	condRows, err := pool.Query(ctx, condQuery, userID, ruleID)
	if err != nil {
		return nil, err
	}
	defer condRows.Close()

	for condRows.Next() {
		var c models.Condition
		if err := condRows.Scan(&c.ID, &c.GroupID, &c.Field, &c.Operator, &c.Value, &c.CaseSensitive, &c.Negate, &c.Order); err != nil {
			return nil, err
		}
		pos, ok := groupIndex[c.GroupID]
		if !ok {
			continue
		}
		group := &rules[pos.rule].ConditionGroups[pos.group]
		group.Conditions = append(group.Conditions, c)
	}
	if err := condRows.Err(); err != nil {
		return nil, err
	}

	actionQuery := `
		SELECT a.id, a.rule_id, a.action_type, a.value, a.sort_order, a.stop_processing
		FROM rule_actions a
		JOIN rules r ON a.rule_id = r.id
		WHERE r.user_id = $1 AND ($2::bigint IS NULL OR r.id = $2)
		ORDER BY a.sort_order, a.id
	`
	actionRows, err := pool.Query(ctx, actionQuery, userID, ruleID)
	if err != nil {
		return nil, err
	}
	defer actionRows.Close()

	for actionRows.Next() {
		var a models.Action
		if err := actionRows.Scan(&a.ID, &a.RuleID, &a.Type, &a.Value, &a.Order, &a.StopProcessing); err != nil {
			return nil, err
		}
		if ri, ok := index[a.RuleID]; ok {
			rules[ri].Actions = append(rules[ri].Actions, a)
		}
	}
	return rules, actionRows.Err()
}
