package trader

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"futures-trader/internal/events"
	"futures-trader/pkg/db"
	"futures-trader/pkg/exchange"
)

// ClosePosition closes an open position with a reduce-only market order.
// Daily counters, PnL and protective targets are left untouched; PnL is
// reported separately via UpdatePnL.
func (t *Trader) ClosePosition(ctx context.Context, symbol string) Result {
	return t.closePosition(ctx, symbol, "manual close")
}

// ClosePositionWithReason is the monitor entry point; the reason ends up
// in the journal and the close event.
func (t *Trader) ClosePositionWithReason(ctx context.Context, symbol, reason string) Result {
	return t.closePosition(ctx, symbol, reason)
}

func (t *Trader) closePosition(ctx context.Context, symbol, reason string) Result {
	resolved := t.resolveSymbol(ctx, symbol)

	positions, err := t.gateway.FetchPositions(ctx)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Error closing position: %v", err)}
	}

	var match *exchange.Position
	for i := range positions {
		p := &positions[i]
		if p.Contracts > 0 && symbolsMatch(p.Symbol, resolved) {
			match = p
			break
		}
	}
	if match == nil {
		return Result{Success: false, Message: fmt.Sprintf("No open position found for %s", resolved)}
	}

	side := exchange.Opposite(match.Side)
	result, err := t.gateway.CreateOrder(ctx, exchange.OrderRequest{
		Symbol:     match.Symbol,
		Side:       side,
		Type:       exchange.OrderTypeMarket,
		Qty:        match.Contracts,
		ReduceOnly: true,
	})
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Error closing position: %v", err)}
	}

	log.Printf("closed %s position on %s: qty=%v reason=%s", match.Side, match.Symbol, match.Contracts, reason)
	t.journalClose(ctx, match, string(side), reason, result.ExchangeOrderID)
	if t.bus != nil {
		t.bus.Publish(events.EventPositionClosed, events.CloseEvent{
			Symbol:  match.Symbol,
			Side:    string(side),
			Qty:     match.Contracts,
			Reason:  reason,
			OrderID: result.ExchangeOrderID,
		})
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Successfully closed position for %s", match.Symbol),
		OrderID: result.ExchangeOrderID,
	}
}

func (t *Trader) journalClose(ctx context.Context, pos *exchange.Position, side, reason, orderID string) {
	if t.journal == nil {
		return
	}
	err := t.journal.InsertClose(ctx, db.CloseRow{
		ID:        uuid.NewString(),
		Symbol:    pos.Symbol,
		Side:      side,
		Qty:       pos.Contracts,
		Reason:    reason,
		OrderID:   orderID,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("journal close for %s failed: %v", pos.Symbol, err)
	}
}
