package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

func GetAccounts(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Account, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, item_id, name, iban, type, currency, created_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.ItemID, &a.Name, &a.IBAN, &a.Type, &a.Currency, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func CreateAccount(ctx context.Context, pool *pgxpool.Pool, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (user_id, name, iban, type, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := pool.QueryRow(ctx, query,
		account.UserID, account.Name, account.IBAN, account.Type, account.Currency,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

func DeleteAccount(ctx context.Context, pool *pgxpool.Pool, userID, accountID int64) error {
	cmd, err := pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("account not found")
	}
	return nil
}
