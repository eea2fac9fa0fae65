package trader

import (
	"context"

	"futures-trader/internal/risk"
	"futures-trader/internal/state"
	"futures-trader/pkg/exchange"
)

// Service is the command surface exposed to the API layer.
type Service interface {
	Status(ctx context.Context) StatusReport
	PlaceTrade(ctx context.Context, req TradeRequest) Result
	ClosePosition(ctx context.Context, symbol string) Result
	UpdatePnL(amount float64) Result
	Positions(ctx context.Context) ([]exchange.Position, error)
	History() []state.TradeRecord
	Targets() []Target
	CheckOrders(ctx context.Context, orderID string) ([]OrderUpdate, error)
	CancelOrder(ctx context.Context, orderID string) Result
	RiskLimits() risk.Limits
	UpdateRiskLimits(u risk.Update) risk.Limits
	Markets(ctx context.Context) (map[string]exchange.Market, error)
	Ticker(ctx context.Context, symbol string) (exchange.Ticker, error)
}

var _ Service = (*Trader)(nil)
