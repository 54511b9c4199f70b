package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cache "ledger-server/src/db"
	db "ledger-server/src/db/sql"
	"ledger-server/src/models"
)

func CreateRuleGroup(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var group models.RuleGroup
		if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
			log.Printf("ERROR: Failed to decode create rule group request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if group.Name == "" {
			http.Error(w, "rule group name is required", http.StatusBadRequest)
			return
		}
		group.UserID = userID

		created, err := db.CreateRuleGroup(r.Context(), pool, &group)
		if err != nil {
			log.Printf("ERROR: Failed to create rule group for user %d: %v", userID, err)
			http.Error(w, "failed to create rule group", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Created rule group id %d for user %d, name %s", created.ID, userID, created.Name)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func GetAllRuleGroups(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		groups, err := db.GetAllRuleGroups(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get rule groups for user %d: %v", userID, err)
			http.Error(w, "failed to get rule groups", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(groups)
	}
}

func GetRuleGroupByID(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		groupID, err := groupIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule group id", http.StatusBadRequest)
			return
		}
		group, err := db.GetRuleGroupByID(r.Context(), pool, userID, groupID)
		if err != nil {
			log.Printf("ERROR: Rule group id %d not found for user %d: %v", groupID, userID, err)
			http.Error(w, "rule group not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(group)
	}
}

func UpdateRuleGroup(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		groupID, err := groupIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule group id", http.StatusBadRequest)
			return
		}

		var group models.RuleGroup
		if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
			log.Printf("ERROR: Failed to decode update rule group request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		group.ID = groupID
		group.UserID = userID

		updated, err := db.UpdateRuleGroup(r.Context(), pool, &group)
		if err != nil {
			log.Printf("ERROR: Failed to update rule group id %d for user %d: %v", groupID, userID, err)
			http.Error(w, "failed to update rule group", http.StatusInternalServerError)
			return
		}
		cache.ClearAllRuleCaches()

		log.Printf("INFO: Updated rule group id %d for user %d", updated.ID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteRuleGroup(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		groupID, err := groupIDParam(r)
		if err != nil {
			http.Error(w, "invalid rule group id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteRuleGroup(r.Context(), pool, userID, groupID); err != nil {
			if strings.Contains(err.Error(), "still owns") {
				log.Printf("ERROR: Refused to delete non-empty rule group %d for user %d", groupID, userID)
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			log.Printf("ERROR: Failed to delete rule group id %d for user %d: %v", groupID, userID, err)
			http.Error(w, "failed to delete rule group", http.StatusInternalServerError)
			return
		}

		log.Printf("INFO: Deleted rule group id %d for user %d", groupID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "rule group deleted"})
	}
}

func groupIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "group_id"), 10, 64)
}
