package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader_state.json")
	store := NewStore(path)

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	lastTrade := now.Add(-time.Hour)
	sl := 48000.0

	st := Fresh(now)
	st.TradeCount = 3
	st.RealizedPnL = -7.25
	st.LastTradeTime = &lastTrade
	st.History = []TradeRecord{{
		Time:       lastTrade,
		Symbol:     "BTCUSDT",
		Side:       "buy",
		Amount:     100,
		Price:      50000,
		StopLoss:   &sl,
		Leverage:   5,
		MarginMode: "isolated",
		OrderID:    "12345",
		OrderType:  "market",
		Status:     "filled",
	}}

	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(now)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TradeCount != 3 || got.RealizedPnL != -7.25 {
		t.Fatalf("counters lost: %+v", got)
	}
	if got.LastTradeTime == nil || !got.LastTradeTime.Equal(lastTrade) {
		t.Fatalf("last trade time lost: %v", got.LastTradeTime)
	}
	if len(got.History) != 1 || got.History[0].OrderID != "12345" {
		t.Fatalf("history lost: %+v", got.History)
	}
	if got.History[0].StopLoss == nil || *got.History[0].StopLoss != 48000.0 {
		t.Fatalf("stop loss lost: %+v", got.History[0])
	}
}

func TestLoadMissingFileReturnsFresh(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	st, err := store.Load(now)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Date != "2026-03-14" || st.TradeCount != 0 || st.History != nil {
		t.Fatalf("expected fresh state, got %+v", st)
	}
}

func TestLoadDiscardsStaleDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader_state.json")
	store := NewStore(path)

	yesterday := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	st := Fresh(yesterday)
	st.TradeCount = 4
	st.RealizedPnL = -15
	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	today := yesterday.Add(2 * time.Hour)
	got, err := store.Load(today)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Date != "2026-03-14" {
		t.Fatalf("Date=%s, want 2026-03-14", got.Date)
	}
	if got.TradeCount != 0 || got.RealizedPnL != 0 || got.LastTradeTime != nil {
		t.Fatalf("stale counters survived rollover: %+v", got)
	}
}

func TestSaveUsesStableSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader_state.json")
	store := NewStore(path)
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	if err := store.Save(Fresh(now)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"date", "daily_trade_count", "daily_pnl", "last_trade_time", "trades_history"} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("state file missing key %q", key)
		}
	}
}
