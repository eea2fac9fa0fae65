package db

import "time"

// OrderRow is one placed order in the audit journal.
type OrderRow struct {
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	OrderType  string    `json:"order_type"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
	Leverage   int       `json:"leverage"`
	MarginMode string    `json:"margin_mode"`
	StopLoss   *float64  `json:"stop_loss"`
	TakeProfit *float64  `json:"take_profit"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CloseRow records a position close (manual or monitor-triggered).
type CloseRow struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Qty       float64   `json:"qty"`
	Reason    string    `json:"reason"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

// User represents an application user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
