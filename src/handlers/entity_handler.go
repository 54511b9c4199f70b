package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	db "ledger-server/src/db/sql"
	"ledger-server/src/models"
)

func GetCategories(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		categories, err := db.GetCategories(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get categories for user %d: %v", userID, err)
			http.Error(w, "failed to get categories", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(categories)
	}
}

func GetMerchants(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		merchants, err := db.GetMerchants(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get merchants for user %d: %v", userID, err)
			http.Error(w, "failed to get merchants", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(merchants)
	}
}

func GetTags(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		tags, err := db.GetTags(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get tags for user %d: %v", userID, err)
			http.Error(w, "failed to get tags", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tags)
	}
}

// CreateEntity handles category, merchant and tag creation through the same
// find-or-create upsert the rule engine uses, so POSTing an existing name
// returns the existing row instead of erroring.
func CreateEntity(pool *pgxpool.Pool, kind models.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode create %s request body for user %d: %v", kind, userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		id, err := db.FindOrCreateEntity(r.Context(), pool, userID, kind, req.Name)
		if err != nil {
			log.Printf("ERROR: Failed to create %s %q for user %d: %v", kind, req.Name, userID, err)
			http.Error(w, "failed to create "+string(kind), http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Created or resolved %s %q (id %d) for user %d", kind, req.Name, id, userID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": id, "name": req.Name})
	}
}
