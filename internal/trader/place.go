package trader

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"futures-trader/internal/events"
	"futures-trader/internal/state"
	"futures-trader/pkg/db"
	"futures-trader/pkg/exchange"
)

// PlaceTrade runs the risk gate, sizes the order and submits it to the
// venue. Market orders count against the daily limit immediately; limit
// orders count when a later status check sees them filled.
func (t *Trader) PlaceTrade(ctx context.Context, req TradeRequest) Result {
	if req.Leverage <= 0 {
		req.Leverage = 5
	}
	if req.MarginMode == "" {
		req.MarginMode = string(exchange.MarginIsolated)
	}
	side := exchange.Side(strings.ToLower(req.Side))
	if side != exchange.SideBuy && side != exchange.SideSell {
		return Result{Success: false, Message: fmt.Sprintf("Invalid side: %s", req.Side)}
	}

	t.mu.Lock()
	now := t.now()
	decision := t.canTradeLocked(now)
	if !decision.Allowed {
		t.mu.Unlock()
		log.Printf("trade rejected: %s", decision.Reason)
		return Result{Success: false, Message: decision.Reason}
	}
	maxSize := t.limits.MaxPositionSize
	t.mu.Unlock()

	if req.Amount > maxSize {
		return Result{Success: false, Message: fmt.Sprintf("Position size ($%.2f) exceeds maximum allowed ($%.2f)", req.Amount, maxSize)}
	}

	// Market metadata is best effort; without it symbol casing and the
	// minimum amount are unknown but the trade still proceeds.
	var minAmount float64
	resolved := stripSymbol(req.Symbol)
	markets, err := t.gateway.LoadMarkets(ctx)
	if err != nil {
		log.Printf("load markets failed, using %s unverified: %v", resolved, err)
	} else {
		id, found := lookupMarket(markets, resolved)
		if !found {
			return Result{Success: false, Message: fmt.Sprintf("Symbol not found or not supported: %s", resolved)}
		}
		resolved = id
		minAmount = markets[id].MinAmount
	}

	// Leverage and margin mode are best effort; the venue may reject
	// them while a position is open.
	if err := t.gateway.SetLeverage(ctx, resolved, req.Leverage); err != nil {
		log.Printf("set leverage %dx for %s failed: %v", req.Leverage, resolved, err)
	}
	if err := t.gateway.SetMarginMode(ctx, resolved, exchange.MarginMode(req.MarginMode), req.Leverage); err != nil {
		log.Printf("set margin mode %s for %s failed: %v", req.MarginMode, resolved, err)
	}

	orderType := exchange.OrderTypeMarket
	price := 0.0
	if req.Price != nil {
		orderType = exchange.OrderTypeLimit
		price = *req.Price
	} else {
		ticker, err := t.gateway.FetchTicker(ctx, resolved)
		if err != nil {
			return Result{Success: false, Message: fmt.Sprintf("Could not fetch price for %s. Error: %v", resolved, err)}
		}
		price = ticker.Last
	}
	if price <= 0 {
		return Result{Success: false, Message: fmt.Sprintf("Could not fetch price for %s. Error: price is zero", resolved)}
	}

	qty := computeQuantity(req.Amount, price, minAmount)

	result, err := t.gateway.CreateOrder(ctx, exchange.OrderRequest{
		Symbol:   resolved,
		Side:     side,
		Type:     orderType,
		Qty:      qty,
		Price:    price,
		PostOnly: req.PostOnly && orderType == exchange.OrderTypeLimit,
		ClientID: uuid.NewString(),
	})
	if err != nil {
		return Result{Success: false, Message: classifySubmitError(req.Symbol, err)}
	}

	fillSymbol := result.Symbol
	if fillSymbol == "" {
		fillSymbol = resolved
	}

	status := "filled"
	if orderType == exchange.OrderTypeLimit {
		status = "pending"
	}

	record := state.TradeRecord{
		Time:       now,
		Symbol:     resolved,
		Side:       string(side),
		Amount:     req.Amount,
		Price:      price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Leverage:   req.Leverage,
		MarginMode: req.MarginMode,
		OrderID:    result.ExchangeOrderID,
		OrderType:  string(orderType),
		Status:     status,
	}

	t.mu.Lock()
	t.day.History = append(t.day.History, record)
	if status == "filled" {
		t.day.TradeCount++
		ts := now
		t.day.LastTradeTime = &ts
	}
	if req.StopLoss != nil || req.TakeProfit != nil {
		t.registerTargetLocked(Target{
			Symbol:     fillSymbol,
			Side:       positionSide(side),
			StopLoss:   req.StopLoss,
			TakeProfit: req.TakeProfit,
			EntryPrice: price,
			Quantity:   qty,
		})
	}
	t.persistLocked()
	t.mu.Unlock()

	t.journalOrder(ctx, record)
	if t.bus != nil {
		t.bus.Publish(events.EventOrderPlaced, events.OrderEvent{
			OrderID: record.OrderID,
			Symbol:  record.Symbol,
			Side:    record.Side,
			Type:    record.OrderType,
			Amount:  record.Amount,
			Price:   record.Price,
			Status:  record.Status,
		})
	}

	log.Printf("placed %s %s order for %s: qty=%v price=%v id=%s", side, orderType, resolved, qty, price, record.OrderID)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Successfully placed %s order for %s", side, resolved),
		OrderID: record.OrderID,
		Status:  status,
	}
}

func (t *Trader) journalOrder(ctx context.Context, rec state.TradeRecord) {
	if t.journal == nil {
		return
	}
	err := t.journal.InsertOrder(ctx, db.OrderRow{
		OrderID:    rec.OrderID,
		Symbol:     rec.Symbol,
		Side:       rec.Side,
		OrderType:  rec.OrderType,
		Amount:     rec.Amount,
		Price:      rec.Price,
		Leverage:   rec.Leverage,
		MarginMode: rec.MarginMode,
		StopLoss:   rec.StopLoss,
		TakeProfit: rec.TakeProfit,
		Status:     rec.Status,
		CreatedAt:  rec.Time,
	})
	if err != nil {
		log.Printf("journal order %s failed: %v", rec.OrderID, err)
	}
}

// computeQuantity converts a USD notional into contract quantity. When
// the venue minimum is larger than the computed quantity the minimum is
// used, even though that can exceed the configured position size cap.
func computeQuantity(amount, price, minAmount float64) float64 {
	qty := amount / price
	if minAmount > 0 && qty < minAmount {
		log.Printf("quantity %v below market minimum %v, clamping up", qty, minAmount)
		return minAmount
	}
	return qty
}

// stripSymbol turns BTC/USDT into BTCUSDT.
func stripSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// lookupMarket finds the venue's canonical casing for a symbol.
func lookupMarket(markets map[string]exchange.Market, symbol string) (string, bool) {
	if _, ok := markets[symbol]; ok {
		return symbol, true
	}
	for id := range markets {
		if strings.EqualFold(id, symbol) {
			return id, true
		}
	}
	return symbol, false
}

// symbolsMatch is the tolerant comparison used for position and target
// lookup: exact or substring containment either way, case-insensitive.
func symbolsMatch(a, b string) bool {
	ua, ub := strings.ToUpper(a), strings.ToUpper(b)
	return ua == ub || strings.Contains(ua, ub) || strings.Contains(ub, ua)
}

func positionSide(side exchange.Side) string {
	if side == exchange.SideBuy {
		return "long"
	}
	return "short"
}

// classifySubmitError maps venue errors onto operator-friendly messages
// by inspecting the error text. Fragile on purpose: venues report these
// conditions only through free-form messages.
func classifySubmitError(symbol string, err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "balance"):
		return fmt.Sprintf("Insufficient balance. Error: %s", msg)
	case strings.Contains(lower, "permission"):
		return fmt.Sprintf("API permission issue. Make sure your API key has trading permissions. Error: %s", msg)
	case strings.Contains(lower, "symbol"):
		return fmt.Sprintf("Symbol error. The pair %s may not be available for futures trading. Error: %s", symbol, msg)
	default:
		return fmt.Sprintf("Error placing trade: %s", msg)
	}
}
