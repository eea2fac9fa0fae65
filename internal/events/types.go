package events

// Event enumerates high-level topics inside the trading engine.
type Event string

const (
	EventOrderPlaced    Event = "order.placed"
	EventOrderFilled    Event = "order.filled"
	EventOrderCanceled  Event = "order.canceled"
	EventPositionClosed Event = "position.closed"
	EventRiskAlert      Event = "risk_alert"
	EventMonitorCycle   Event = "monitor.cycle"
)

// OrderEvent is published when an order is placed or changes state.
type OrderEvent struct {
	OrderID string  `json:"order_id"`
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Type    string  `json:"type"`
	Amount  float64 `json:"amount"`
	Price   float64 `json:"price"`
	Status  string  `json:"status"`
}

// CloseEvent is published when a position is closed.
type CloseEvent struct {
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Qty     float64 `json:"qty"`
	Reason  string  `json:"reason"`
	OrderID string  `json:"order_id"`
}
