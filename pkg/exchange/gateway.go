package exchange

import "context"

// Gateway abstracts a derivatives venue.
type Gateway interface {
	LoadMarkets(ctx context.Context) (map[string]Market, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	FetchPositions(ctx context.Context) ([]Position, error)
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	FetchOrder(ctx context.Context, symbol, orderID string) (Order, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol string, mode MarginMode, leverage int) error
}
