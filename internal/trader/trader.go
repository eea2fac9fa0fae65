// Package trader implements the risk-gated order execution engine.
package trader

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"futures-trader/internal/events"
	"futures-trader/internal/risk"
	"futures-trader/internal/state"
	"futures-trader/pkg/db"
	"futures-trader/pkg/exchange"
)

// Trader owns the daily trading state, risk limits and protective targets.
// A single mutex serializes access to all three; gateway calls never run
// under the lock.
type Trader struct {
	gateway exchange.Gateway
	store   *state.Store
	journal *db.Database // optional audit trail
	bus     *events.Bus

	mu      sync.Mutex
	limits  risk.Limits
	day     state.DailyState
	targets []Target // insertion order matters for matching

	now func() time.Time
}

// Config bundles the trader dependencies.
type Config struct {
	Gateway exchange.Gateway
	Store   *state.Store
	Journal *db.Database
	Bus     *events.Bus
	Limits  risk.Limits

	// Now overrides the clock in tests.
	Now func() time.Time
}

// New creates a trader, loading today's persisted state if present.
func New(cfg Config) (*Trader, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	t := &Trader{
		gateway: cfg.Gateway,
		store:   cfg.Store,
		journal: cfg.Journal,
		bus:     cfg.Bus,
		limits:  cfg.Limits,
		now:     now,
	}

	if cfg.Store != nil {
		day, err := cfg.Store.Load(now())
		if err != nil {
			return nil, fmt.Errorf("load daily state: %w", err)
		}
		t.day = day
	} else {
		t.day = state.Fresh(now())
	}
	return t, nil
}

// CanTrade reports whether a new trade would currently be allowed.
func (t *Trader) CanTrade() risk.Decision {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canTradeLocked(t.now())
}

func (t *Trader) canTradeLocked(now time.Time) risk.Decision {
	t.rolloverLocked(now)
	return risk.Evaluate(t.limits, t.day.TradeCount, t.day.RealizedPnL, t.day.LastTradeTime, now)
}

// rolloverLocked resets the daily counters when the last trade happened
// on a previous day.
func (t *Trader) rolloverLocked(now time.Time) {
	if t.day.LastTradeTime == nil {
		return
	}
	lastDay := t.day.LastTradeTime.Format(state.DateFormat)
	today := now.Format(state.DateFormat)
	if lastDay < today {
		log.Printf("new day detected, resetting daily counters")
		t.day = state.Fresh(now)
		t.persistLocked()
	}
}

// persistLocked writes the daily state; persistence failures are logged,
// never surfaced to the caller.
func (t *Trader) persistLocked() {
	if t.store == nil {
		return
	}
	if err := t.store.Save(t.day); err != nil {
		log.Printf("persist state failed: %v", err)
	}
}

// Status returns the current risk snapshot. The trade counter is
// reconciled against the history before every report.
func (t *Trader) Status(ctx context.Context) StatusReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rolloverLocked(now)
	t.recountLocked(now)
	decision := risk.Evaluate(t.limits, t.day.TradeCount, t.day.RealizedPnL, t.day.LastTradeTime, now)

	remaining := t.limits.MaxTradesPerDay - t.day.TradeCount
	if remaining < 0 {
		remaining = 0
	}

	report := StatusReport{
		CanTrade:        decision.Allowed,
		StatusMessage:   decision.Reason,
		DailyTradeCount: t.day.TradeCount,
		MaxTradesPerDay: t.limits.MaxTradesPerDay,
		TradesRemaining: remaining,
		DailyPnL:        t.day.RealizedPnL,
		DailyLossLimit:  t.limits.MaxDailyLoss,
		LastTradeTime:   t.day.LastTradeTime,
	}
	if t.day.LastTradeTime != nil {
		ends := t.day.LastTradeTime.Add(t.limits.Cooldown())
		report.CooldownEnds = &ends
	}
	return report
}

// recountLocked recomputes the trade counter from today's history. The
// history is the source of truth; drift is logged and corrected.
func (t *Trader) recountLocked(now time.Time) {
	today := now.Format(state.DateFormat)
	filled := 0
	for _, rec := range t.day.History {
		if rec.Status == "filled" && rec.Time.Format(state.DateFormat) == today {
			filled++
		}
	}
	if filled != t.day.TradeCount {
		log.Printf("trade count drift: counter=%d history=%d, correcting", t.day.TradeCount, filled)
		t.day.TradeCount = filled
		t.persistLocked()
	}
}

// UpdatePnL records realized profit or loss for the day. It never closes
// positions; breaching the loss limit only raises an alert.
func (t *Trader) UpdatePnL(amount float64) Result {
	t.mu.Lock()
	t.rolloverLocked(t.now())
	t.day.RealizedPnL += amount
	pnl := t.day.RealizedPnL
	maxLoss := t.limits.MaxDailyLoss
	t.persistLocked()
	t.mu.Unlock()

	log.Printf("updated daily PnL: $%.2f", pnl)
	if pnl <= -maxLoss {
		msg := fmt.Sprintf("daily loss limit of $%.2f reached, trading stopped for today", maxLoss)
		log.Printf("WARNING: %s", msg)
		if t.bus != nil {
			t.bus.Publish(events.EventRiskAlert, msg)
		}
	}
	return Result{Success: true, Message: fmt.Sprintf("Updated daily PnL: $%.2f", pnl)}
}

// RiskLimits returns a copy of the current limits.
func (t *Trader) RiskLimits() risk.Limits {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits
}

// UpdateRiskLimits applies a partial limits update and returns the result.
func (t *Trader) UpdateRiskLimits(u risk.Update) risk.Limits {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits.Apply(u)
	t.persistLocked()
	log.Printf("updated risk parameters: %+v", t.limits)
	return t.limits
}

// History returns a copy of today's trade records.
func (t *Trader) History() []state.TradeRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]state.TradeRecord, len(t.day.History))
	copy(out, t.day.History)
	return out
}

// Targets returns a snapshot of the protective targets in insertion order.
func (t *Trader) Targets() []Target {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Target, len(t.targets))
	copy(out, t.targets)
	return out
}

// MatchTarget finds the first target matching a venue position symbol.
// Matching is tolerant: exact match or substring containment in either
// direction, case-insensitive. With overlapping symbols such as BTCUSDT
// and 1000BTCUSDT the first registered target wins.
func (t *Trader) MatchTarget(positionSymbol string) (Target, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tgt := range t.targets {
		if symbolsMatch(tgt.Symbol, positionSymbol) {
			return tgt, true
		}
	}
	return Target{}, false
}

// RemoveTarget drops the target registered under symbol.
func (t *Trader) RemoveTarget(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, tgt := range t.targets {
		if tgt.Symbol == symbol {
			t.targets = append(t.targets[:i], t.targets[i+1:]...)
			return
		}
	}
}

// registerTargetLocked stores a protective target, replacing any existing
// entry for the same symbol in place.
func (t *Trader) registerTargetLocked(tgt Target) {
	for i, existing := range t.targets {
		if existing.Symbol == tgt.Symbol {
			t.targets[i] = tgt
			return
		}
	}
	t.targets = append(t.targets, tgt)
}

// Positions returns open positions (non-zero contracts) from the venue.
func (t *Trader) Positions(ctx context.Context) ([]exchange.Position, error) {
	positions, err := t.gateway.FetchPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	open := make([]exchange.Position, 0, len(positions))
	for _, p := range positions {
		if p.Contracts > 0 {
			open = append(open, p)
		}
	}
	return open, nil
}

// Markets exposes the venue contract list.
func (t *Trader) Markets(ctx context.Context) (map[string]exchange.Market, error) {
	return t.gateway.LoadMarkets(ctx)
}

// Ticker exposes a venue price snapshot for a resolved symbol.
func (t *Trader) Ticker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	resolved := t.resolveSymbol(ctx, symbol)
	return t.gateway.FetchTicker(ctx, resolved)
}
