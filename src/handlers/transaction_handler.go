package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cache "ledger-server/src/db"
	db "ledger-server/src/db/sql"
	"ledger-server/src/models"
)

func GetTransactions(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		cacheKey := fmt.Sprintf("transactions:%d:%s", userID, r.URL.RawQuery)
		if v, ok := cache.GetTransactionCache(cacheKey); ok {
			if txns, ok := v.([]models.Transaction); ok {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(txns)
				return
			}
		}

		var txns []models.Transaction
		var err error
		if accountParam := r.URL.Query().Get("account_id"); accountParam != "" {
			accountID, perr := strconv.ParseInt(accountParam, 10, 64)
			if perr != nil {
				http.Error(w, "invalid account id", http.StatusBadRequest)
				return
			}
			txns, err = db.GetTransactionsByAccount(r.Context(), pool, userID, accountID)
		} else {
			txns, err = selectTransactions(r.Context(), pool, userID, nil,
				r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		}
		if err != nil {
			log.Printf("ERROR: Failed to get transactions for user %d: %v", userID, err)
			http.Error(w, "failed to get transactions", http.StatusInternalServerError)
			return
		}

		cache.SetTransactionCache(cacheKey, txns)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(txns)
	}
}

// CreateTransaction inserts a transaction and fires the user's on-create
// rules against it before responding, so the returned record reflects any
// rule mutations.
func CreateTransaction(pool *pgxpool.Pool, logUnmatched bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var txn models.Transaction
		if err := json.NewDecoder(r.Body).Decode(&txn); err != nil {
			log.Printf("ERROR: Failed to decode create transaction request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if txn.Type != "" && !models.ValidTransactionType(txn.Type) {
			http.Error(w, "invalid transaction type", http.StatusBadRequest)
			return
		}
		if txn.Type == "" {
			txn.Type = models.TransactionTypeWithdrawal
		}
		txn.UserID = userID

		created, err := db.CreateTransaction(r.Context(), pool, &txn)
		if err != nil {
			log.Printf("ERROR: Failed to create transaction for user %d: %v", userID, err)
			http.Error(w, "failed to create transaction", http.StatusInternalServerError)
			return
		}
		cache.ClearAllTransactionCaches()

		result, err := runTriggeredRules(r.Context(), pool, userID, []models.Transaction{*created}, models.TriggerOnCreate, logUnmatched)
		if err != nil {
			log.Printf("ERROR: On-create rule run failed for transaction %d, user %d: %v", created.ID, userID, err)
		} else if result.Matched > 0 {
			created, err = db.GetTransactionByID(r.Context(), pool, userID, created.ID)
			if err != nil {
				log.Printf("ERROR: Failed to reload transaction %d after rule run: %v", txn.ID, err)
				http.Error(w, "failed to load transaction", http.StatusInternalServerError)
				return
			}
		}

		log.Printf("INFO: Created transaction id %d for user %d", created.ID, userID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

// UpdateTransaction edits a transaction's own fields and fires the user's
// on-update rules against the result.
func UpdateTransaction(pool *pgxpool.Pool, logUnmatched bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		txnID, err := strconv.ParseInt(chi.URLParam(r, "transaction_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		var txn models.Transaction
		if err := json.NewDecoder(r.Body).Decode(&txn); err != nil {
			log.Printf("ERROR: Failed to decode update transaction request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if txn.Type != "" && !models.ValidTransactionType(txn.Type) {
			http.Error(w, "invalid transaction type", http.StatusBadRequest)
			return
		}
		txn.ID = txnID
		txn.UserID = userID

		updated, err := db.UpdateTransaction(r.Context(), pool, &txn)
		if err != nil {
			log.Printf("ERROR: Failed to update transaction id %d for user %d: %v", txnID, userID, err)
			http.Error(w, "failed to update transaction", http.StatusInternalServerError)
			return
		}
		cache.ClearAllTransactionCaches()

		result, err := runTriggeredRules(r.Context(), pool, userID, []models.Transaction{*updated}, models.TriggerOnUpdate, logUnmatched)
		if err != nil {
			log.Printf("ERROR: On-update rule run failed for transaction %d, user %d: %v", txnID, userID, err)
		} else if result.Matched > 0 {
			updated, err = db.GetTransactionByID(r.Context(), pool, userID, txnID)
			if err != nil {
				log.Printf("ERROR: Failed to reload transaction %d after rule run: %v", txnID, err)
				http.Error(w, "failed to load transaction", http.StatusInternalServerError)
				return
			}
		}

		log.Printf("INFO: Updated transaction id %d for user %d", txnID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteTransaction(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		txnID, err := strconv.ParseInt(chi.URLParam(r, "transaction_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteTransaction(r.Context(), pool, userID, txnID); err != nil {
			log.Printf("ERROR: Failed to delete transaction id %d for user %d: %v", txnID, userID, err)
			http.Error(w, "failed to delete transaction", http.StatusInternalServerError)
			return
		}
		cache.ClearAllTransactionCaches()

		log.Printf("INFO: Deleted transaction id %d for user %d", txnID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "transaction deleted"})
	}
}
