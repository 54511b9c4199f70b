package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

func CreateRuleGroup(ctx context.Context, pool *pgxpool.Pool, group *models.RuleGroup) (*models.RuleGroup, error) {
	query := `
		INSERT INTO rule_groups (user_id, name, description, sort_order, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, description, sort_order, active, created_at, updated_at
	`
	var g models.RuleGroup
	err := pool.QueryRow(ctx, query, group.UserID, group.Name, group.Description, group.Order, group.Active).
		Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.Order, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func GetRuleGroupByID(ctx context.Context, pool *pgxpool.Pool, userID, groupID int64) (*models.RuleGroup, error) {
	query := `
		SELECT id, user_id, name, description, sort_order, active, created_at, updated_at
		FROM rule_groups
		WHERE id = $1 AND user_id = $2
	`
	var g models.RuleGroup
	err := pool.QueryRow(ctx, query, groupID, userID).
		Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.Order, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func GetAllRuleGroups(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.RuleGroup, error) {
	query := `
		SELECT id, user_id, name, description, sort_order, active, created_at, updated_at
		FROM rule_groups
		WHERE user_id = $1
		ORDER BY sort_order, id
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.RuleGroup
	for rows.Next() {
		var g models.RuleGroup
		err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.Order, &g.Active, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func UpdateRuleGroup(ctx context.Context, pool *pgxpool.Pool, group *models.RuleGroup) (*models.RuleGroup, error) {
	query := `
		UPDATE rule_groups
		SET name = $1, description = $2, sort_order = $3, active = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6
		RETURNING id, user_id, name, description, sort_order, active, created_at, updated_at
	`
	var g models.RuleGroup
	err := pool.QueryRow(ctx, query, group.Name, group.Description, group.Order, group.Active, group.ID, group.UserID).
		Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.Order, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteRuleGroup refuses to delete a group that still owns rules; the group
// has to be emptied first.
func DeleteRuleGroup(ctx context.Context, pool *pgxpool.Pool, userID, groupID int64) error {
	var ruleCount int
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM rules WHERE group_id = $1 AND user_id = $2`, groupID, userID).Scan(&ruleCount)
	if err != nil {
		return fmt.Errorf("failed to count rules in group: %w", err)
	}
	if ruleCount > 0 {
		return fmt.Errorf("rule group still owns %d rules", ruleCount)
	}

	cmd, err := pool.Exec(ctx, `DELETE FROM rule_groups WHERE id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("rule group not found")
	}
	return nil
}
