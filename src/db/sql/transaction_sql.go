package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

// Transactions are read back fully materialized: account, category and
// merchant display names joined in, tag names aggregated, so the rule engine
// compares against human-readable values.
const transactionSelect = `
	SELECT t.id, t.user_id, t.account_id, a.name,
	       t.amount, t.description, t.partner, t.type, t.note, t.recipient_note,
	       t.place, t.target_iban, t.source_iban, t.date,
	       t.category_id, c.name, t.merchant_id, m.name,
	       t.reconciled, t.reconciled_at, t.created_at, t.updated_at
	FROM transactions t
	JOIN accounts a ON t.account_id = a.id
	LEFT JOIN categories c ON t.category_id = c.id
	LEFT JOIN merchants m ON t.merchant_id = m.id
`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.AccountName,
		&t.Amount, &t.Description, &t.Partner, &t.Type, &t.Note, &t.RecipientNote,
		&t.Place, &t.TargetIBAN, &t.SourceIBAN, &t.Date,
		&t.CategoryID, &t.CategoryName, &t.MerchantID, &t.MerchantName,
		&t.Reconciled, &t.ReconciledAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryTransactions(ctx context.Context, pool *pgxpool.Pool, where string, args ...interface{}) ([]models.Transaction, error) {
	rows, err := pool.Query(ctx, transactionSelect+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, attachTagNames(ctx, pool, txns)
}

func attachTagNames(ctx context.Context, pool *pgxpool.Pool, txns []models.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	ids := make([]int64, len(txns))
	index := make(map[int64]int, len(txns))
	for i := range txns {
		ids[i] = txns[i].ID
		index[txns[i].ID] = i
	}

	rows, err := pool.Query(ctx, `
		SELECT tt.transaction_id, tg.name
		FROM transaction_tags tt
		JOIN tags tg ON tt.tag_id = tg.id
		WHERE tt.transaction_id = ANY($1)
		ORDER BY tg.name
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load transaction tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txnID int64
		var name string
		if err := rows.Scan(&txnID, &name); err != nil {
			return err
		}
		if i, ok := index[txnID]; ok {
			txns[i].Tags = append(txns[i].Tags, name)
		}
	}
	return rows.Err()
}

func GetTransactionByID(ctx context.Context, pool *pgxpool.Pool, userID, txnID int64) (*models.Transaction, error) {
	txns, err := queryTransactions(ctx, pool, ` WHERE t.id = $1 AND t.user_id = $2`, txnID, userID)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("transaction not found")
	}
	return &txns[0], nil
}

func GetTransactionsByIDs(ctx context.Context, pool *pgxpool.Pool, userID int64, ids []int64) ([]models.Transaction, error) {
	return queryTransactions(ctx, pool, ` WHERE t.user_id = $1 AND t.id = ANY($2) ORDER BY t.date, t.id`, userID, ids)
}

func GetTransactionsByDateRange(ctx context.Context, pool *pgxpool.Pool, userID int64, from, to time.Time) ([]models.Transaction, error) {
	return queryTransactions(ctx, pool, ` WHERE t.user_id = $1 AND t.date >= $2 AND t.date <= $3 ORDER BY t.date, t.id`, userID, from, to)
}

func GetAllTransactions(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.Transaction, error) {
	return queryTransactions(ctx, pool, ` WHERE t.user_id = $1 ORDER BY t.date, t.id`, userID)
}

func GetTransactionsByAccount(ctx context.Context, pool *pgxpool.Pool, userID, accountID int64) ([]models.Transaction, error) {
	return queryTransactions(ctx, pool, ` WHERE t.user_id = $1 AND t.account_id = $2 ORDER BY t.date, t.id`, userID, accountID)
}

func CreateTransaction(ctx context.Context, pool *pgxpool.Pool, txn *models.Transaction) (*models.Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, account_id, amount, description, partner, type, note,
		                          recipient_note, place, target_iban, source_iban, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	var id int64
	err := pool.QueryRow(ctx, query,
		txn.UserID, txn.AccountID, txn.Amount, txn.Description, txn.Partner, txn.Type, txn.Note,
		txn.RecipientNote, txn.Place, txn.TargetIBAN, txn.SourceIBAN, txn.Date,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return GetTransactionByID(ctx, pool, txn.UserID, id)
}

func UpdateTransaction(ctx context.Context, pool *pgxpool.Pool, txn *models.Transaction) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET amount = $1, description = $2, partner = $3, type = $4, note = $5,
		    recipient_note = $6, place = $7, target_iban = $8, source_iban = $9, date = $10,
		    updated_at = NOW()
		WHERE id = $11 AND user_id = $12
	`
	cmd, err := pool.Exec(ctx, query,
		txn.Amount, txn.Description, txn.Partner, txn.Type, txn.Note,
		txn.RecipientNote, txn.Place, txn.TargetIBAN, txn.SourceIBAN, txn.Date,
		txn.ID, txn.UserID,
	)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("transaction not found")
	}
	return GetTransactionByID(ctx, pool, txn.UserID, txn.ID)
}

func DeleteTransaction(ctx context.Context, pool *pgxpool.Pool, userID, txnID int64) error {
	cmd, err := pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, txnID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found")
	}
	return nil
}

// Field mutators used by the rule action executor.

func SetTransactionCategory(ctx context.Context, pool *pgxpool.Pool, txnID, categoryID int64) error {
	_, err := pool.Exec(ctx, `UPDATE transactions SET category_id = $1, updated_at = NOW() WHERE id = $2`, categoryID, txnID)
	return err
}

func SetTransactionMerchant(ctx context.Context, pool *pgxpool.Pool, txnID, merchantID int64) error {
	_, err := pool.Exec(ctx, `UPDATE transactions SET merchant_id = $1, updated_at = NOW() WHERE id = $2`, merchantID, txnID)
	return err
}

func SetTransactionDescription(ctx context.Context, pool *pgxpool.Pool, txnID int64, description string) error {
	_, err := pool.Exec(ctx, `UPDATE transactions SET description = $1, updated_at = NOW() WHERE id = $2`, description, txnID)
	return err
}

func SetTransactionNote(ctx context.Context, pool *pgxpool.Pool, txnID int64, note string) error {
	_, err := pool.Exec(ctx, `UPDATE transactions SET note = $1, updated_at = NOW() WHERE id = $2`, note, txnID)
	return err
}

func SetTransactionType(ctx context.Context, pool *pgxpool.Pool, txnID int64, txnType string) error {
	_, err := pool.Exec(ctx, `UPDATE transactions SET type = $1, updated_at = NOW() WHERE id = $2`, txnType, txnID)
	return err
}

func MarkTransactionReconciled(ctx context.Context, pool *pgxpool.Pool, txnID int64, at time.Time) error {
	_, err := pool.Exec(ctx, `UPDATE transactions SET reconciled = TRUE, reconciled_at = $1, updated_at = NOW() WHERE id = $2`, at, txnID)
	return err
}

func AttachTransactionTag(ctx context.Context, pool *pgxpool.Pool, txnID, tagID int64) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO transaction_tags (transaction_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (transaction_id, tag_id) DO NOTHING
	`, txnID, tagID)
	return err
}

func DetachTransactionTag(ctx context.Context, pool *pgxpool.Pool, txnID, tagID int64) error {
	_, err := pool.Exec(ctx, `DELETE FROM transaction_tags WHERE transaction_id = $1 AND tag_id = $2`, txnID, tagID)
	return err
}

func DetachAllTransactionTags(ctx context.Context, pool *pgxpool.Pool, txnID int64) error {
	_, err := pool.Exec(ctx, `DELETE FROM transaction_tags WHERE transaction_id = $1`, txnID)
	return err
}
