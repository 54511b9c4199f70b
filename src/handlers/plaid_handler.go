package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	db "ledger-server/src/db/sql"
	"ledger-server/src/models"
	"ledger-server/src/util"
)

func CreateLinkToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		user := plaid.LinkTokenCreateRequestUser{
			ClientUserId: strconv.FormatInt(userID, 10),
		}
		request := plaid.NewLinkTokenCreateRequest(
			"Ledger",
			"en",
			[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		)
		request.SetUser(user)
		request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
		resp, _, err := plaidClient.PlaidApi.LinkTokenCreate(r.Context()).LinkTokenCreateRequest(*request).Execute()
		if err != nil {
			log.Printf("ERROR: Plaid link token creation failed for user %d: %v", userID, err)
			http.Error(w, "Failed to create link token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(resp.GetLinkToken())
	}
}

func ExchangePublicToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			PublicToken string `json:"public_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode exchange public token request body: %v", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		exchangeReq := plaid.NewItemPublicTokenExchangeRequest(req.PublicToken)
		exchangeResp, _, err := plaidClient.PlaidApi.ItemPublicTokenExchange(r.Context()).ItemPublicTokenExchangeRequest(
			*exchangeReq,
		).Execute()
		if err != nil {
			log.Printf("ERROR: Plaid public token exchange failed for user %d: %v", userID, err)
			http.Error(w, "Failed to exchange public token", http.StatusInternalServerError)
			return
		}

		accessToken := exchangeResp.GetAccessToken()
		itemID := exchangeResp.GetItemId()

		if err := db.SavePlaidItem(r.Context(), pool, userID, itemID, accessToken); err != nil {
			log.Printf("ERROR: Failed to save plaid item for user %d: %v", userID, err)
			http.Error(w, "Failed to save plaid item", http.StatusInternalServerError)
			return
		}

		item, err := db.GetPlaidItemByItemID(r.Context(), pool, itemID)
		if err != nil {
			log.Printf("ERROR: Failed to reload plaid item %s for user %d: %v", itemID, userID, err)
			http.Error(w, "Failed to save plaid item", http.StatusInternalServerError)
			return
		}

		accountsReq := plaid.NewAccountsGetRequest(accessToken)
		accountsResp, _, err := plaidClient.PlaidApi.AccountsGet(r.Context()).AccountsGetRequest(*accountsReq).Execute()
		if err != nil {
			log.Printf("ERROR: Failed to fetch accounts for user %d, item %s: %v", userID, itemID, err)
			http.Error(w, "Failed to fetch accounts from Plaid", http.StatusInternalServerError)
			return
		}
		if err := db.SavePlaidAccounts(r.Context(), pool, userID, item.ID, accountsResp.GetAccounts()); err != nil {
			log.Printf("ERROR: Failed to save accounts for user %d: %v", userID, err)
			http.Error(w, "Failed to save accounts", http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Successfully exchanged public token and saved plaid item for user %d, item %s", userID, itemID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"item_id": item.ID})
	}
}

func GetPlaidItems(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		items, err := db.GetPlaidItems(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get plaid items for user %d: %v", userID, err)
			http.Error(w, "Failed to retrieve plaid items", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}
}

// SyncTransactions pulls new transactions for a linked item and runs the
// user's on-create rules over whatever was newly ingested.
func SyncTransactions(plaidClient *plaid.APIClient, pool *pgxpool.Pool, logUnmatched bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		itemRowID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		item, err := db.GetPlaidItemByID(r.Context(), pool, userID, itemRowID)
		if err != nil {
			log.Printf("ERROR: Failed to get plaid item %d for user %d: %v", itemRowID, userID, err)
			http.Error(w, "plaid item not found", http.StatusNotFound)
			return
		}

		added, err := syncItemTransactions(r.Context(), plaidClient, pool, item, logUnmatched)
		if err != nil {
			log.Printf("ERROR: Failed to sync transactions for user %d, item %d: %v", userID, item.ID, err)
			http.Error(w, "Failed to sync transactions", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"added": added})
	}
}

// PlaidWebhook receives Plaid webhooks, verifies the signature, and syncs the
// affected item. Webhooks are unauthenticated, so the item lookup is by
// Plaid's item id rather than the session user.
func PlaidWebhook(plaidClient *plaid.APIClient, pool *pgxpool.Pool, logUnmatched bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		ok, err := util.VerifyPlaidWebhook(r.Context(), plaidClient, body, r.Header)
		if !ok {
			log.Printf("ERROR: Plaid webhook verification failed: %v", err)
			http.Error(w, "verification failed", http.StatusUnauthorized)
			return
		}

		var payload struct {
			WebhookType string `json:"webhook_type"`
			WebhookCode string `json:"webhook_code"`
			ItemID      string `json:"item_id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			log.Printf("ERROR: Failed to decode plaid webhook payload: %v", err)
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		if payload.WebhookType != "TRANSACTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		item, err := db.GetPlaidItemByItemID(r.Context(), pool, payload.ItemID)
		if err != nil {
			log.Printf("ERROR: Plaid webhook for unknown item %s: %v", payload.ItemID, err)
			http.Error(w, "unknown item", http.StatusNotFound)
			return
		}

		added, err := syncItemTransactions(r.Context(), plaidClient, pool, item, logUnmatched)
		if err != nil {
			log.Printf("ERROR: Webhook-triggered sync failed for item %d: %v", item.ID, err)
			http.Error(w, "sync failed", http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Webhook %s/%s synced %d transactions for item %d", payload.WebhookType, payload.WebhookCode, added, item.ID)
		w.WriteHeader(http.StatusOK)
	}
}

func syncItemTransactions(ctx context.Context, plaidClient *plaid.APIClient, pool *pgxpool.Pool, item *models.PlaidItem, logUnmatched bool) (int, error) {
	request := plaid.NewTransactionsSyncRequest(item.AccessToken)
	if item.SyncCursor != "" {
		request.SetCursor(item.SyncCursor)
	}

	total := 0
	for {
		resp, _, err := plaidClient.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
		if err != nil {
			return total, err
		}

		ids, err := db.InsertPlaidTransactions(ctx, pool, item.UserID, resp.GetAdded())
		if err != nil {
			return total, err
		}
		total += len(ids)

		if len(ids) > 0 {
			txns, err := db.GetTransactionsByIDs(ctx, pool, item.UserID, ids)
			if err != nil {
				return total, err
			}
			if _, err := runTriggeredRules(ctx, pool, item.UserID, txns, models.TriggerOnCreate, logUnmatched); err != nil {
				log.Printf("ERROR: On-create rule run failed during plaid sync for item %d: %v", item.ID, err)
			}
		}

		if err := db.UpdateSyncCursor(ctx, pool, item.ID, resp.GetNextCursor()); err != nil {
			return total, err
		}

		if !resp.GetHasMore() {
			return total, nil
		}
		request.SetCursor(resp.GetNextCursor())
	}
}
