package models

import "time"

type PlaidItem struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	AccessToken string    `json:"-"`
	ItemID      string    `json:"item_id"`
	SyncCursor  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
