package models

import "time"

type Account struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ItemID    *int64    `json:"item_id"`
	Name      string    `json:"name"`
	IBAN      string    `json:"iban"`
	Type      string    `json:"type"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}
