package trader

import "time"

// TradeRequest is a request to open a position.
type TradeRequest struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`   // buy or sell
	Amount     float64  `json:"amount"` // USD notional
	Price      *float64 `json:"price"`  // nil places a market order
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Leverage   int      `json:"leverage"`
	MarginMode string   `json:"margin_mode"` // isolated or cross
	PostOnly   bool     `json:"post_only"`
}

// Result is the command-level outcome shared by all trading operations.
// Failures are values, not errors: a rejected trade is a normal response.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// StatusReport is the risk/status snapshot returned by Status.
type StatusReport struct {
	CanTrade        bool       `json:"can_trade"`
	StatusMessage   string     `json:"status_message"`
	DailyTradeCount int        `json:"daily_trade_count"`
	MaxTradesPerDay int        `json:"max_trades_per_day"`
	TradesRemaining int        `json:"trades_remaining"`
	DailyPnL        float64    `json:"daily_pnl"`
	DailyLossLimit  float64    `json:"daily_loss_limit"`
	LastTradeTime   *time.Time `json:"last_trade_time"`
	CooldownEnds    *time.Time `json:"cooldown_ends"`
}

// Target is a protective price level watched by the position monitor.
// Symbol is the venue-reported symbol of the fill, which may differ in
// form from the requested pair.
type Target struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"` // long or short
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	EntryPrice float64  `json:"entry_price"`
	Quantity   float64  `json:"quantity"`
}

// OrderUpdate describes a pending order transition found by CheckOrders.
type OrderUpdate struct {
	OrderID   string `json:"order_id"`
	Symbol    string `json:"symbol"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}
