package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"

	"ledger-server/src/models"
)

const plaidItemSelect = `
	SELECT id, user_id, access_token, item_id, sync_cursor, created_at
	FROM plaid_items
`

func GetPlaidItems(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.PlaidItem, error) {
	rows, err := pool.Query(ctx, plaidItemSelect+`WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.PlaidItem
	for rows.Next() {
		var item models.PlaidItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.AccessToken, &item.ItemID, &item.SyncCursor, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func GetPlaidItemByID(ctx context.Context, pool *pgxpool.Pool, userID, id int64) (*models.PlaidItem, error) {
	var item models.PlaidItem
	err := pool.QueryRow(ctx, plaidItemSelect+`WHERE id = $1 AND user_id = $2`, id, userID).Scan(
		&item.ID, &item.UserID, &item.AccessToken, &item.ItemID, &item.SyncCursor, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("plaid item not found: %w", err)
	}
	return &item, nil
}

// GetPlaidItemByItemID looks an item up by Plaid's own item identifier.
// Webhooks carry that identifier, not ours.
func GetPlaidItemByItemID(ctx context.Context, pool *pgxpool.Pool, itemID string) (*models.PlaidItem, error) {
	var item models.PlaidItem
	err := pool.QueryRow(ctx, plaidItemSelect+`WHERE item_id = $1`, itemID).Scan(
		&item.ID, &item.UserID, &item.AccessToken, &item.ItemID, &item.SyncCursor, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("plaid item not found: %w", err)
	}
	return &item, nil
}

func SavePlaidItem(ctx context.Context, pool *pgxpool.Pool, userID int64, itemID, accessToken string) error {
	query := `
		INSERT INTO plaid_items (user_id, item_id, access_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id) DO NOTHING
	`
	_, err := pool.Exec(ctx, query, userID, itemID, accessToken)
	return err
}

func UpdateSyncCursor(ctx context.Context, pool *pgxpool.Pool, itemRowID int64, cursor string) error {
	_, err := pool.Exec(ctx, `UPDATE plaid_items SET sync_cursor = $1 WHERE id = $2`, cursor, itemRowID)
	return err
}

// SavePlaidAccounts upserts linked bank accounts keyed on Plaid's account id,
// so repeated syncs refresh names in place.
func SavePlaidAccounts(ctx context.Context, pool *pgxpool.Pool, userID, itemRowID int64, accounts []plaid.AccountBase) error {
	for _, acc := range accounts {
		query := `
			INSERT INTO accounts (user_id, item_id, name, type, plaid_account_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (plaid_account_id) DO UPDATE SET
				name = EXCLUDED.name,
				type = EXCLUDED.type
		`
		_, err := pool.Exec(ctx, query,
			userID,
			itemRowID,
			acc.GetName(),
			string(acc.GetType()),
			acc.GetAccountId(),
		)
		if err != nil {
			return fmt.Errorf("failed to save account %s: %w", acc.GetAccountId(), err)
		}
	}
	return nil
}

// InsertPlaidTransactions inserts synced transactions, skipping any already
// ingested (dedup on plaid_txn_id). Returns the ids of the rows actually
// inserted so the caller can run on-create rules against just those.
func InsertPlaidTransactions(ctx context.Context, pool *pgxpool.Pool, userID int64, txns []plaid.Transaction) ([]int64, error) {
	var inserted []int64
	for _, txn := range txns {
		date, err := time.Parse("2006-01-02", txn.GetDate())
		if err != nil {
			return inserted, fmt.Errorf("bad date %q on plaid transaction %s: %w", txn.GetDate(), txn.GetTransactionId(), err)
		}

		// Plaid reports outflows as positive amounts.
		amount := decimal.NewFromFloat(txn.GetAmount())
		txnType := models.TransactionTypeWithdrawal
		if amount.IsNegative() {
			amount = amount.Neg()
			txnType = models.TransactionTypeDeposit
		}

		query := `
			INSERT INTO transactions (user_id, account_id, amount, description, partner, place, type, date, plaid_txn_id)
			SELECT $1, a.id, $2, $3, $4, $5, $6, $7, $8
			FROM accounts a
			WHERE a.user_id = $1 AND a.plaid_account_id = $9
			ON CONFLICT (plaid_txn_id) DO NOTHING
			RETURNING id
		`
		loc := txn.GetLocation()
		rows, err := pool.Query(ctx, query,
			userID,
			amount,
			txn.GetName(),
			txn.GetMerchantName(),
			loc.GetCity(),
			txnType,
			date,
			txn.GetTransactionId(),
			txn.GetAccountId(),
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert plaid transaction %s: %w", txn.GetTransactionId(), err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return inserted, err
			}
			inserted = append(inserted, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}
