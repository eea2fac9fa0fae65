package trader

import (
	"context"
	"fmt"
	"log"
	"strings"

	"futures-trader/internal/events"
)

// resolveSymbol strips the pair separator and adopts the venue's casing
// when the market list is reachable.
func (t *Trader) resolveSymbol(ctx context.Context, symbol string) string {
	resolved := stripSymbol(symbol)
	markets, err := t.gateway.LoadMarkets(ctx)
	if err != nil {
		log.Printf("load markets failed, using %s unverified: %v", resolved, err)
		return resolved
	}
	id, _ := lookupMarket(markets, resolved)
	return id
}

// CheckOrders reconciles pending limit orders against the venue. With an
// orderID only that order is checked. Transitions are applied at most
// once; a filled order bumps the daily counter and the cooldown clock.
func (t *Trader) CheckOrders(ctx context.Context, orderID string) ([]OrderUpdate, error) {
	type pendingOrder struct {
		orderID string
		symbol  string
	}

	t.mu.Lock()
	var pending []pendingOrder
	for _, rec := range t.day.History {
		if rec.Status != "pending" {
			continue
		}
		if orderID != "" && rec.OrderID != orderID {
			continue
		}
		pending = append(pending, pendingOrder{orderID: rec.OrderID, symbol: rec.Symbol})
	}
	t.mu.Unlock()

	var updates []OrderUpdate
	for _, p := range pending {
		order, err := t.gateway.FetchOrder(ctx, p.symbol, p.orderID)
		if err != nil {
			log.Printf("check order %s failed: %v", p.orderID, err)
			continue
		}
		newStatus, ok := mapVenueStatus(order.Status)
		if !ok {
			continue
		}
		if update, changed := t.applyOrderStatus(p.orderID, newStatus); changed {
			updates = append(updates, update)
		}
	}
	if orderID != "" && len(pending) == 0 {
		return nil, fmt.Errorf("no pending order with id %s", orderID)
	}
	return updates, nil
}

// mapVenueStatus normalizes venue order states onto the local lifecycle.
func mapVenueStatus(venueStatus string) (string, bool) {
	switch strings.ToLower(venueStatus) {
	case "closed", "filled":
		return "filled", true
	case "canceled", "cancelled":
		return "canceled", true
	default:
		return "", false
	}
}

// applyOrderStatus transitions a pending record. It is idempotent: a
// record already past pending is left untouched.
func (t *Trader) applyOrderStatus(orderID, newStatus string) (OrderUpdate, bool) {
	t.mu.Lock()
	var update OrderUpdate
	changed := false
	for i := range t.day.History {
		rec := &t.day.History[i]
		if rec.OrderID != orderID || rec.Status != "pending" {
			continue
		}
		update = OrderUpdate{
			OrderID:   orderID,
			Symbol:    rec.Symbol,
			OldStatus: rec.Status,
			NewStatus: newStatus,
		}
		rec.Status = newStatus
		if newStatus == "filled" {
			t.day.TradeCount++
			ts := t.now()
			t.day.LastTradeTime = &ts
		}
		changed = true
		break
	}
	if changed {
		t.persistLocked()
	}
	t.mu.Unlock()

	if !changed {
		return OrderUpdate{}, false
	}

	log.Printf("order %s: %s -> %s", orderID, update.OldStatus, update.NewStatus)
	if t.journal != nil {
		if err := t.journal.UpdateOrderStatus(context.Background(), orderID, newStatus); err != nil {
			log.Printf("journal status update %s failed: %v", orderID, err)
		}
	}
	if t.bus != nil {
		topic := events.EventOrderFilled
		if newStatus == "canceled" {
			topic = events.EventOrderCanceled
		}
		t.bus.Publish(topic, events.OrderEvent{
			OrderID: orderID,
			Symbol:  update.Symbol,
			Status:  newStatus,
		})
	}
	return update, true
}

// CancelOrder cancels a pending order on the venue and marks the local
// record canceled.
func (t *Trader) CancelOrder(ctx context.Context, orderID string) Result {
	t.mu.Lock()
	symbol := ""
	for _, rec := range t.day.History {
		if rec.OrderID == orderID {
			symbol = rec.Symbol
			break
		}
	}
	t.mu.Unlock()
	if symbol == "" {
		return Result{Success: false, Message: fmt.Sprintf("Unknown order id: %s", orderID)}
	}

	if err := t.gateway.CancelOrder(ctx, symbol, orderID); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Error canceling order: %v", err)}
	}
	t.applyOrderStatus(orderID, "canceled")
	return Result{Success: true, Message: "Order canceled successfully", OrderID: orderID, Status: "canceled"}
}
