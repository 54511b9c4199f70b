package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

func CreateWhitelistedEmail(ctx context.Context, pool *pgxpool.Pool, email string) (*models.WhitelistedEmail, error) {
	query := `
		INSERT INTO whitelisted_emails (email)
		VALUES ($1)
		RETURNING id, email, created_at
	`
	var w models.WhitelistedEmail
	err := pool.QueryRow(ctx, query, email).Scan(&w.ID, &w.Email, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func GetAllWhitelistedEmails(ctx context.Context, pool *pgxpool.Pool) ([]models.WhitelistedEmail, error) {
	query := `SELECT id, email, created_at FROM whitelisted_emails ORDER BY id`
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []models.WhitelistedEmail
	for rows.Next() {
		var w models.WhitelistedEmail
		if err := rows.Scan(&w.ID, &w.Email, &w.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, w)
	}
	return emails, rows.Err()
}

// IsEmailWhitelisted does the registration gate check in SQL so the
// comparison matches the unique index's case handling.
func IsEmailWhitelisted(ctx context.Context, pool *pgxpool.Pool, email string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM whitelisted_emails WHERE LOWER(email) = LOWER($1))`,
		email,
	).Scan(&exists)
	return exists, err
}

func DeleteWhitelistedEmail(ctx context.Context, pool *pgxpool.Pool, id int64) error {
	cmd, err := pool.Exec(ctx, `DELETE FROM whitelisted_emails WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("whitelisted email not found")
	}
	return nil
}
