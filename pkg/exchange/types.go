package exchange

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the closing side for a position side ("long"/"short").
func Opposite(positionSide string) Side {
	if positionSide == "long" {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// MarginMode selects how margin is allocated for a contract.
type MarginMode string

const (
	MarginIsolated MarginMode = "isolated"
	MarginCross    MarginMode = "cross"
)

// Market describes a tradable contract as reported by the venue.
type Market struct {
	ID        string  `json:"id"` // venue identifier, e.g. BTCUSDT
	Base      string  `json:"base"`
	Quote     string  `json:"quote"`
	MinAmount float64 `json:"min_amount"` // minimum order quantity in contracts; 0 when unknown
}

// Ticker is a point-in-time price snapshot.
type Ticker struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
}

// Position is an open contract position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // "long" or "short"
	Contracts     float64 `json:"contracts"`
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Leverage      int     `json:"leverage"`
}

// OrderRequest captures an order intent to be sent to the venue.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Qty        float64
	Price      float64 // required for limit
	PostOnly   bool    // limit only
	ReduceOnly bool    // close existing position without opening the other way
	ClientID   string  // optional client order id
}

// OrderResult returns the venue ack.
type OrderResult struct {
	ExchangeOrderID string
	Symbol          string // symbol as reported back by the venue
	Status          string
	Price           float64 // fill or quote price when reported
}

// Order is an order looked up from the venue after submission.
type Order struct {
	ID     string
	Symbol string
	Side   Side
	Status string // raw venue status, e.g. "open", "filled", "closed", "canceled"
	Price  float64
	Qty    float64
	Filled float64
}
