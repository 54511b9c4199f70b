package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	db "ledger-server/src/db/sql"
	"ledger-server/src/models"
)

func GetAccounts(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		accounts, err := db.GetAccounts(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get accounts for user %d: %v", userID, err)
			http.Error(w, "failed to get accounts", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accounts)
	}
}

func CreateAccount(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var account models.Account
		if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
			log.Printf("ERROR: Failed to decode create account request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if account.Name == "" {
			http.Error(w, "account name is required", http.StatusBadRequest)
			return
		}
		if account.Type == "" {
			account.Type = "checking"
		}
		if account.Currency == "" {
			account.Currency = "EUR"
		}
		account.UserID = userID

		created, err := db.CreateAccount(r.Context(), pool, &account)
		if err != nil {
			log.Printf("ERROR: Failed to create account for user %d: %v", userID, err)
			http.Error(w, "failed to create account", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Created account id %d for user %d, name %s", created.ID, userID, created.Name)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func DeleteAccount(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		accountID, err := strconv.ParseInt(chi.URLParam(r, "account_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteAccount(r.Context(), pool, userID, accountID); err != nil {
			log.Printf("ERROR: Failed to delete account id %d for user %d: %v", accountID, userID, err)
			http.Error(w, "failed to delete account", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Deleted account id %d for user %d", accountID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "account deleted"})
	}
}
