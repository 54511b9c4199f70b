package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/models"
)

func InsertNotification(ctx context.Context, pool *pgxpool.Pool, userID int64, message string) error {
	_, err := pool.Exec(ctx, `INSERT INTO notifications (user_id, message) VALUES ($1, $2)`, userID, message)
	return err
}

func GetNotificationsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, message, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func MarkNotificationRead(ctx context.Context, pool *pgxpool.Pool, userID, notificationID int64) error {
	_, err := pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	return err
}
