package trader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"futures-trader/internal/risk"
	"futures-trader/internal/state"
	"futures-trader/pkg/exchange"
)

type fakeGateway struct {
	markets      map[string]exchange.Market
	marketsErr   error
	ticker       exchange.Ticker
	tickerErr    error
	positions    []exchange.Position
	positionsErr error
	createResult exchange.OrderResult
	createErr    error
	created      []exchange.OrderRequest
	orders       map[string]exchange.Order
	canceled     []string
}

func (g *fakeGateway) LoadMarkets(ctx context.Context) (map[string]exchange.Market, error) {
	if g.marketsErr != nil {
		return nil, g.marketsErr
	}
	if g.markets == nil {
		return map[string]exchange.Market{}, nil
	}
	return g.markets, nil
}

func (g *fakeGateway) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	if g.tickerErr != nil {
		return exchange.Ticker{}, g.tickerErr
	}
	return g.ticker, nil
}

func (g *fakeGateway) FetchPositions(ctx context.Context) ([]exchange.Position, error) {
	return g.positions, g.positionsErr
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	g.created = append(g.created, req)
	if g.createErr != nil {
		return exchange.OrderResult{}, g.createErr
	}
	res := g.createResult
	if res.ExchangeOrderID == "" {
		res.ExchangeOrderID = "9000"
	}
	if res.Symbol == "" {
		res.Symbol = req.Symbol
	}
	return res, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, symbol, orderID string) (exchange.Order, error) {
	o, ok := g.orders[orderID]
	if !ok {
		return exchange.Order{}, errors.New("order not found")
	}
	return o, nil
}

func (g *fakeGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	return nil, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	g.canceled = append(g.canceled, orderID)
	return nil
}

func (g *fakeGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (g *fakeGateway) SetMarginMode(ctx context.Context, symbol string, mode exchange.MarginMode, leverage int) error {
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTrader(t *testing.T, gw *fakeGateway, clock *testClock) *Trader {
	t.Helper()
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	tr, err := New(Config{
		Gateway: gw,
		Store:   store,
		Limits:  risk.DefaultLimits(),
		Now:     clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func defaultGateway() *fakeGateway {
	return &fakeGateway{
		markets: map[string]exchange.Market{
			"BTCUSDT": {ID: "BTCUSDT", MinAmount: 0.0001},
		},
		ticker: exchange.Ticker{Symbol: "BTCUSDT", Last: 50000},
	}
}

func newClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func marketTrade() TradeRequest {
	return TradeRequest{Symbol: "BTC/USDT", Side: "buy", Amount: 4}
}

func TestComputeQuantity(t *testing.T) {
	if got := computeQuantity(100, 50, 0); got != 2 {
		t.Fatalf("computeQuantity(100,50,0)=%v, want 2", got)
	}
	// The market minimum wins even when it exceeds the notional-derived
	// quantity.
	if got := computeQuantity(100, 50, 5); got != 5 {
		t.Fatalf("computeQuantity(100,50,5)=%v, want 5", got)
	}
	if got := computeQuantity(100, 50, 1); got != 2 {
		t.Fatalf("computeQuantity(100,50,1)=%v, want 2", got)
	}
}

func TestPlaceTradeMarketOrder(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	res := tr.PlaceTrade(context.Background(), marketTrade())
	if !res.Success {
		t.Fatalf("PlaceTrade failed: %s", res.Message)
	}
	if res.Status != "filled" {
		t.Fatalf("market order status=%s, want filled", res.Status)
	}
	if len(gw.created) != 1 {
		t.Fatalf("expected 1 order, got %d", len(gw.created))
	}
	if gw.created[0].Type != exchange.OrderTypeMarket {
		t.Fatalf("type=%s, want market", gw.created[0].Type)
	}

	report := tr.Status(context.Background())
	if report.DailyTradeCount != 1 {
		t.Fatalf("DailyTradeCount=%d, want 1", report.DailyTradeCount)
	}
	if report.LastTradeTime == nil {
		t.Fatal("LastTradeTime not set")
	}
}

func TestPlaceTradeLimitOrderDoesNotCount(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	price := 48000.0
	req := marketTrade()
	req.Price = &price

	res := tr.PlaceTrade(context.Background(), req)
	if !res.Success {
		t.Fatalf("PlaceTrade failed: %s", res.Message)
	}
	if res.Status != "pending" {
		t.Fatalf("limit order status=%s, want pending", res.Status)
	}

	report := tr.Status(context.Background())
	if report.DailyTradeCount != 0 {
		t.Fatalf("limit order counted immediately: %d", report.DailyTradeCount)
	}
	if report.LastTradeTime != nil {
		t.Fatal("LastTradeTime set by unfilled limit order")
	}
}

func TestLimitOrderCountsWhenFilled(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	price := 48000.0
	req := marketTrade()
	req.Price = &price
	res := tr.PlaceTrade(context.Background(), req)
	if !res.Success {
		t.Fatalf("PlaceTrade: %s", res.Message)
	}

	gw.orders = map[string]exchange.Order{
		res.OrderID: {ID: res.OrderID, Symbol: "BTCUSDT", Status: "closed"},
	}

	updates, err := tr.CheckOrders(context.Background(), "")
	if err != nil {
		t.Fatalf("CheckOrders: %v", err)
	}
	if len(updates) != 1 || updates[0].NewStatus != "filled" {
		t.Fatalf("unexpected updates: %+v", updates)
	}

	report := tr.Status(context.Background())
	if report.DailyTradeCount != 1 {
		t.Fatalf("DailyTradeCount=%d, want 1", report.DailyTradeCount)
	}

	// A second check is a no-op.
	updates, err = tr.CheckOrders(context.Background(), "")
	if err != nil {
		t.Fatalf("CheckOrders: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("second check produced updates: %+v", updates)
	}
	if got := tr.Status(context.Background()).DailyTradeCount; got != 1 {
		t.Fatalf("count bumped twice: %d", got)
	}
}

func TestCanceledLimitOrderNeverCounts(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	price := 48000.0
	req := marketTrade()
	req.Price = &price
	res := tr.PlaceTrade(context.Background(), req)

	gw.orders = map[string]exchange.Order{
		res.OrderID: {ID: res.OrderID, Symbol: "BTCUSDT", Status: "canceled"},
	}
	updates, err := tr.CheckOrders(context.Background(), res.OrderID)
	if err != nil {
		t.Fatalf("CheckOrders: %v", err)
	}
	if len(updates) != 1 || updates[0].NewStatus != "canceled" {
		t.Fatalf("unexpected updates: %+v", updates)
	}
	if got := tr.Status(context.Background()).DailyTradeCount; got != 0 {
		t.Fatalf("canceled order counted: %d", got)
	}
}

func TestCooldownRejection(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
		t.Fatalf("first trade failed: %s", res.Message)
	}

	clock.Advance(2 * time.Minute)
	res := tr.PlaceTrade(context.Background(), marketTrade())
	if res.Success {
		t.Fatal("trade allowed inside cooldown")
	}
	if !strings.Contains(res.Message, "Cooldown period active") {
		t.Fatalf("message=%q", res.Message)
	}
	if !strings.Contains(res.Message, "8.0 more minutes") {
		t.Fatalf("expected 8.0 remaining minutes, got %q", res.Message)
	}

	clock.Advance(9 * time.Minute)
	if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
		t.Fatalf("trade after cooldown failed: %s", res.Message)
	}
}

func TestMaxTradesRejection(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	for i := 0; i < 5; i++ {
		if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
			t.Fatalf("trade %d failed: %s", i, res.Message)
		}
		clock.Advance(11 * time.Minute)
	}

	res := tr.PlaceTrade(context.Background(), marketTrade())
	if res.Success || !strings.Contains(res.Message, "Max daily trades (5) reached") {
		t.Fatalf("expected max trades rejection, got %+v", res)
	}
}

func TestDailyLossRejection(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	tr.UpdatePnL(-25)
	res := tr.PlaceTrade(context.Background(), marketTrade())
	if res.Success || !strings.Contains(res.Message, "Daily loss limit") {
		t.Fatalf("expected loss limit rejection, got %+v", res)
	}
}

func TestDayRolloverResetsOnce(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	for i := 0; i < 5; i++ {
		if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
			t.Fatalf("trade %d failed: %s", i, res.Message)
		}
		clock.Advance(11 * time.Minute)
	}
	tr.UpdatePnL(-25)

	// Next day: counters reset, trading allowed again.
	clock.Advance(24 * time.Hour)
	report := tr.Status(context.Background())
	if !report.CanTrade {
		t.Fatalf("trading blocked after rollover: %s", report.StatusMessage)
	}
	if report.DailyTradeCount != 0 || report.DailyPnL != 0 {
		t.Fatalf("counters survived rollover: %+v", report)
	}

	// Rollover must not repeat within the same day.
	if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
		t.Fatalf("trade after rollover failed: %s", res.Message)
	}
	if got := tr.Status(context.Background()).DailyTradeCount; got != 1 {
		t.Fatalf("DailyTradeCount=%d, want 1", got)
	}
}

func TestPositionSizeCap(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	req := marketTrade()
	req.Amount = 6
	res := tr.PlaceTrade(context.Background(), req)
	if res.Success || !strings.Contains(res.Message, "exceeds maximum allowed") {
		t.Fatalf("expected size rejection, got %+v", res)
	}
	if len(gw.created) != 0 {
		t.Fatal("rejected trade reached the gateway")
	}
}

func TestTickerFailureIsFatal(t *testing.T) {
	gw := defaultGateway()
	gw.tickerErr = errors.New("timeout")
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	res := tr.PlaceTrade(context.Background(), marketTrade())
	if res.Success || !strings.Contains(res.Message, "Could not fetch price") {
		t.Fatalf("expected price failure, got %+v", res)
	}
}

func TestUnknownSymbolRejected(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	req := marketTrade()
	req.Symbol = "DOGE/USDT"
	res := tr.PlaceTrade(context.Background(), req)
	if res.Success || !strings.Contains(res.Message, "Symbol not found or not supported") {
		t.Fatalf("expected symbol rejection, got %+v", res)
	}
}

func TestSubmitErrorClassification(t *testing.T) {
	tests := []struct {
		err      string
		contains string
	}{
		{"insufficient Balance for order", "Insufficient balance"},
		{"api Permission denied", "API permission issue"},
		{"unknown symbol XYZ", "Symbol error"},
		{"internal server error", "Error placing trade"},
	}
	for _, tc := range tests {
		t.Run(tc.contains, func(t *testing.T) {
			gw := defaultGateway()
			gw.createErr = errors.New(tc.err)
			tr := newTestTrader(t, gw, newClock())

			res := tr.PlaceTrade(context.Background(), marketTrade())
			if res.Success || !strings.Contains(res.Message, tc.contains) {
				t.Fatalf("err=%q: got %+v", tc.err, res)
			}
		})
	}
}

func TestRecountCorrectsDrift(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	for i := 0; i < 3; i++ {
		if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
			t.Fatalf("trade %d failed: %s", i, res.Message)
		}
		clock.Advance(11 * time.Minute)
	}

	// Corrupt the counter; Status must heal it from history.
	tr.mu.Lock()
	tr.day.TradeCount = 7
	tr.mu.Unlock()

	report := tr.Status(context.Background())
	if report.DailyTradeCount != 3 {
		t.Fatalf("DailyTradeCount=%d, want 3 after recount", report.DailyTradeCount)
	}
}

func TestTargetRegistration(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	tr := newTestTrader(t, gw, clock)

	sl := 48000.0
	tp := 55000.0
	req := marketTrade()
	req.StopLoss = &sl
	req.TakeProfit = &tp
	if res := tr.PlaceTrade(context.Background(), req); !res.Success {
		t.Fatalf("PlaceTrade: %s", res.Message)
	}

	targets := tr.Targets()
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	tgt := targets[0]
	if tgt.Symbol != "BTCUSDT" || tgt.Side != "long" {
		t.Fatalf("unexpected target: %+v", tgt)
	}
	if *tgt.StopLoss != 48000.0 || *tgt.TakeProfit != 55000.0 {
		t.Fatalf("levels lost: %+v", tgt)
	}

	// No target without protective levels.
	clock.Advance(11 * time.Minute)
	if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
		t.Fatalf("PlaceTrade: %s", res.Message)
	}
	if got := len(tr.Targets()); got != 1 {
		t.Fatalf("unprotected trade registered a target: %d", got)
	}
}

func TestMatchTargetTolerant(t *testing.T) {
	tr := newTestTrader(t, defaultGateway(), newClock())
	sl := 1.0
	tr.mu.Lock()
	tr.registerTargetLocked(Target{Symbol: "BTCUSDT", Side: "long", StopLoss: &sl})
	tr.mu.Unlock()

	for _, sym := range []string{"BTCUSDT", "btcusdt", "BTCUSDT_PERP"} {
		if _, ok := tr.MatchTarget(sym); !ok {
			t.Fatalf("no match for %s", sym)
		}
	}
	if _, ok := tr.MatchTarget("ETHUSDT"); ok {
		t.Fatal("matched unrelated symbol")
	}
}

func TestClosePosition(t *testing.T) {
	gw := defaultGateway()
	gw.positions = []exchange.Position{
		{Symbol: "BTCUSDT", Side: "long", Contracts: 0.5, EntryPrice: 50000},
	}
	tr := newTestTrader(t, gw, newClock())

	res := tr.ClosePosition(context.Background(), "BTC/USDT")
	if !res.Success {
		t.Fatalf("ClosePosition: %s", res.Message)
	}
	req := gw.created[len(gw.created)-1]
	if req.Side != exchange.SideSell {
		t.Fatalf("close side=%s, want sell", req.Side)
	}
	if !req.ReduceOnly || req.Type != exchange.OrderTypeMarket {
		t.Fatalf("close order not reduce-only market: %+v", req)
	}
	if req.Qty != 0.5 {
		t.Fatalf("close qty=%v, want 0.5", req.Qty)
	}

	// Close has no effect on daily counters.
	if got := tr.Status(context.Background()).DailyTradeCount; got != 0 {
		t.Fatalf("close bumped trade count: %d", got)
	}
}

func TestClosePositionShortUsesBuy(t *testing.T) {
	gw := defaultGateway()
	gw.positions = []exchange.Position{
		{Symbol: "ETHUSDT", Side: "short", Contracts: 2},
	}
	tr := newTestTrader(t, gw, newClock())

	res := tr.ClosePosition(context.Background(), "ETHUSDT")
	if !res.Success {
		t.Fatalf("ClosePosition: %s", res.Message)
	}
	if gw.created[len(gw.created)-1].Side != exchange.SideBuy {
		t.Fatalf("short close side=%s, want buy", gw.created[len(gw.created)-1].Side)
	}
}

func TestClosePositionNotFound(t *testing.T) {
	tr := newTestTrader(t, defaultGateway(), newClock())
	res := tr.ClosePosition(context.Background(), "BTC/USDT")
	if res.Success || !strings.Contains(res.Message, "No open position found") {
		t.Fatalf("expected not-found result, got %+v", res)
	}
}

func TestUpdateRiskLimitsPartial(t *testing.T) {
	tr := newTestTrader(t, defaultGateway(), newClock())

	maxTrades := 2
	got := tr.UpdateRiskLimits(risk.Update{MaxTradesPerDay: &maxTrades})
	if got.MaxTradesPerDay != 2 || got.CooldownMinutes != 10 {
		t.Fatalf("unexpected limits: %+v", got)
	}
	if got := tr.RiskLimits(); got.MaxTradesPerDay != 2 {
		t.Fatalf("update not retained: %+v", got)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	gw := defaultGateway()
	clock := newClock()
	path := filepath.Join(t.TempDir(), "state.json")
	store := state.NewStore(path)

	tr, err := New(Config{Gateway: gw, Store: store, Limits: risk.DefaultLimits(), Now: clock.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if res := tr.PlaceTrade(context.Background(), marketTrade()); !res.Success {
		t.Fatalf("PlaceTrade: %s", res.Message)
	}

	// Same day restart keeps counters.
	tr2, err := New(Config{Gateway: gw, Store: store, Limits: risk.DefaultLimits(), Now: clock.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := tr2.Status(context.Background()).DailyTradeCount; got != 1 {
		t.Fatalf("DailyTradeCount=%d after restart, want 1", got)
	}
}
