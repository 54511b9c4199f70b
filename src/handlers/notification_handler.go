package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	db "ledger-server/src/db/sql"
)

func GetNotifications(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		notifications, err := db.GetNotificationsForUser(r.Context(), pool, userID, limit)
		if err != nil {
			log.Printf("ERROR: Failed to get notifications for user %d: %v", userID, err)
			http.Error(w, "failed to get notifications", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(notifications)
	}
}

func MarkNotificationRead(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		notificationID, err := strconv.ParseInt(chi.URLParam(r, "notification_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid notification id", http.StatusBadRequest)
			return
		}

		if err := db.MarkNotificationRead(r.Context(), pool, userID, notificationID); err != nil {
			log.Printf("ERROR: Failed to mark notification %d read for user %d: %v", notificationID, userID, err)
			http.Error(w, "failed to mark notification read", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "notification marked read"})
	}
}
