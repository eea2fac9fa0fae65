package state

import "time"

// DateFormat is the day key used for rollover comparisons.
const DateFormat = "2006-01-02"

// TradeRecord is one entry in the daily trade history.
type TradeRecord struct {
	Time       time.Time `json:"time"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Amount     float64   `json:"amount"` // USD notional
	Price      float64   `json:"price"`
	StopLoss   *float64  `json:"stop_loss"`
	TakeProfit *float64  `json:"take_profit"`
	Leverage   int       `json:"leverage"`
	MarginMode string    `json:"margin_mode"`
	OrderID    string    `json:"order_id"`
	OrderType  string    `json:"order_type"` // market or limit
	Status     string    `json:"status"`     // pending, filled or canceled
}

// DailyState holds the per-day trading counters and history.
type DailyState struct {
	Date          string        `json:"date"`
	TradeCount    int           `json:"daily_trade_count"`
	RealizedPnL   float64       `json:"daily_pnl"`
	LastTradeTime *time.Time    `json:"last_trade_time"`
	History       []TradeRecord `json:"trades_history"`
}

// Fresh returns an empty state for the given day.
func Fresh(now time.Time) DailyState {
	return DailyState{Date: now.Format(DateFormat)}
}
