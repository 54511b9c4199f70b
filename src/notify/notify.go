package notify

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	db "ledger-server/src/db/sql"
)

// Sink delivers rule-engine notifications by writing them to the user's
// notification feed. Fire and forget from the engine's point of view.
type Sink struct {
	Pool *pgxpool.Pool
}

func (s *Sink) Send(ctx context.Context, userID int64, message string) error {
	if err := db.InsertNotification(ctx, s.Pool, userID, message); err != nil {
		return err
	}
	log.Printf("INFO: Sent notification to user %d: %s", userID, message)
	return nil
}
