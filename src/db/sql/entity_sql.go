package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

func entityTable(kind models.EntityKind) (string, error) {
	switch kind {
	case models.EntityCategory:
		return "categories", nil
	case models.EntityMerchant:
		return "merchants", nil
	case models.EntityTag:
		return "tags", nil
	}
	return "", fmt.Errorf("unknown entity kind %q", kind)
}

// FindOrCreateEntity resolves a reference entity by name for a user,
// creating it when missing. The upsert relies on the (user_id, name) unique
// constraint, so two concurrent runs creating the same name resolve to the
// same row.
func FindOrCreateEntity(ctx context.Context, pool *pgxpool.Pool, userID int64, kind models.EntityKind, name string) (int64, error) {
	table, err := entityTable(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, table)
	var id int64
	if err := pool.QueryRow(ctx, query, userID, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to find or create %s %q: %w", kind, name, err)
	}
	return id, nil
}

func GetEntityName(ctx context.Context, pool *pgxpool.Pool, userID int64, kind models.EntityKind, id int64) (string, error) {
	table, err := entityTable(kind)
	if err != nil {
		return "", err
	}
	query := fmt.Sprintf(`SELECT name FROM %s WHERE id = $1 AND user_id = $2`, table)
	var name string
	if err := pool.QueryRow(ctx, query, id, userID).Scan(&name); err != nil {
		if err == pgx.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("failed to look up %s %d: %w", kind, id, err)
	}
	return name, nil
}

func GetCategories(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Category, error) {
	rows, err := pool.Query(ctx, `SELECT id, user_id, name, created_at FROM categories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func GetMerchants(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Merchant, error) {
	rows, err := pool.Query(ctx, `SELECT id, user_id, name, created_at FROM merchants WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Merchant
	for rows.Next() {
		var m models.Merchant
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func GetTags(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Tag, error) {
	rows, err := pool.Query(ctx, `SELECT id, user_id, name, created_at FROM tags WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
