package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types assignable by the set_type rule action.
const (
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeDeposit    = "deposit"
	TransactionTypeTransfer   = "transfer"
)

func ValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypeDeposit, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is a fully materialized ledger row: referenced entity names are
// joined in on read so rule conditions compare against display names, not ids.
type Transaction struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	AccountID     int64           `json:"account_id"`
	AccountName   string          `json:"account_name"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Partner       string          `json:"partner"`
	Type          string          `json:"type"`
	Note          string          `json:"note"`
	RecipientNote string          `json:"recipient_note"`
	Place         string          `json:"place"`
	TargetIBAN    string          `json:"target_iban"`
	SourceIBAN    string          `json:"source_iban"`
	Date          time.Time       `json:"date"`
	CategoryID    *int64          `json:"category_id"`
	CategoryName  *string         `json:"category_name"`
	MerchantID    *int64          `json:"merchant_id"`
	MerchantName  *string         `json:"merchant_name"`
	Tags          []string        `json:"tags"`
	Reconciled    bool            `json:"reconciled"`
	ReconciledAt  *time.Time      `json:"reconciled_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
