package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"futures-trader/internal/trader"
	"futures-trader/pkg/exchange"
)

type fakeEngine struct {
	positions    []exchange.Position
	positionsErr error
	targets      map[string]trader.Target
	closed       []string
	reasons      []string
	closeFail    bool
}

func (e *fakeEngine) Positions(ctx context.Context) ([]exchange.Position, error) {
	return e.positions, e.positionsErr
}

func (e *fakeEngine) MatchTarget(symbol string) (trader.Target, bool) {
	t, ok := e.targets[symbol]
	return t, ok
}

func (e *fakeEngine) RemoveTarget(symbol string) {
	delete(e.targets, symbol)
}

func (e *fakeEngine) ClosePositionWithReason(ctx context.Context, symbol, reason string) trader.Result {
	if e.closeFail {
		return trader.Result{Success: false, Message: "venue unavailable"}
	}
	e.closed = append(e.closed, symbol)
	e.reasons = append(e.reasons, reason)
	return trader.Result{Success: true}
}

func ptr(v float64) *float64 { return &v }

func TestScanStopLoss(t *testing.T) {
	tests := []struct {
		name      string
		pos       exchange.Position
		target    trader.Target
		wantClose bool
	}{
		{
			name:      "long below stop",
			pos:       exchange.Position{Symbol: "BTCUSDT", Side: "long", Contracts: 1, MarkPrice: 47000},
			target:    trader.Target{Symbol: "BTCUSDT", Side: "long", StopLoss: ptr(48000)},
			wantClose: true,
		},
		{
			name:      "long above stop",
			pos:       exchange.Position{Symbol: "BTCUSDT", Side: "long", Contracts: 1, MarkPrice: 49000},
			target:    trader.Target{Symbol: "BTCUSDT", Side: "long", StopLoss: ptr(48000)},
			wantClose: false,
		},
		{
			name:      "short above stop",
			pos:       exchange.Position{Symbol: "BTCUSDT", Side: "short", Contracts: 1, MarkPrice: 52500},
			target:    trader.Target{Symbol: "BTCUSDT", Side: "short", StopLoss: ptr(52000)},
			wantClose: true,
		},
		{
			name:      "short below stop",
			pos:       exchange.Position{Symbol: "BTCUSDT", Side: "short", Contracts: 1, MarkPrice: 51000},
			target:    trader.Target{Symbol: "BTCUSDT", Side: "short", StopLoss: ptr(52000)},
			wantClose: false,
		},
		{
			name:      "zero mark price skipped",
			pos:       exchange.Position{Symbol: "BTCUSDT", Side: "long", Contracts: 1, MarkPrice: 0},
			target:    trader.Target{Symbol: "BTCUSDT", Side: "long", StopLoss: ptr(48000)},
			wantClose: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{
				positions: []exchange.Position{tc.pos},
				targets:   map[string]trader.Target{tc.target.Symbol: tc.target},
			}
			m := New(engine, nil, nil, Config{})
			m.Scan(context.Background())

			if got := len(engine.closed) > 0; got != tc.wantClose {
				t.Fatalf("closed=%v, want %v", got, tc.wantClose)
			}
			if tc.wantClose {
				if engine.reasons[0] != "stop loss" {
					t.Fatalf("reason=%q", engine.reasons[0])
				}
				if _, ok := engine.targets["BTCUSDT"]; ok {
					t.Fatal("target not removed after close")
				}
			}
		})
	}
}

func TestScanTakeProfit(t *testing.T) {
	tests := []struct {
		name      string
		side      string
		mark      float64
		tp        float64
		wantClose bool
	}{
		{"long at target", "long", 55000, 55000, true},
		{"long below target", "long", 54000, 55000, false},
		{"short take profit triggers below", "short", 95, 100, true},
		{"short above target stays open", "short", 105, 100, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEngine{
				positions: []exchange.Position{
					{Symbol: "ETHUSDT", Side: tc.side, Contracts: 1, MarkPrice: tc.mark},
				},
				targets: map[string]trader.Target{
					"ETHUSDT": {Symbol: "ETHUSDT", Side: tc.side, TakeProfit: ptr(tc.tp)},
				},
			}
			m := New(engine, nil, nil, Config{})
			m.Scan(context.Background())

			if got := len(engine.closed) > 0; got != tc.wantClose {
				t.Fatalf("closed=%v, want %v", got, tc.wantClose)
			}
			if tc.wantClose && engine.reasons[0] != "take profit" {
				t.Fatalf("reason=%q", engine.reasons[0])
			}
		})
	}
}

func TestScanHardLoss(t *testing.T) {
	engine := &fakeEngine{
		positions: []exchange.Position{
			{Symbol: "BTCUSDT", Side: "long", Contracts: 1, UnrealizedPnL: -6},
			{Symbol: "ETHUSDT", Side: "long", Contracts: 1, UnrealizedPnL: -4.5},
		},
	}
	m := New(engine, nil, nil, Config{HardLoss: 5})
	m.Scan(context.Background())

	if len(engine.closed) != 1 || engine.closed[0] != "BTCUSDT" {
		t.Fatalf("closed=%v, want [BTCUSDT]", engine.closed)
	}
	if engine.reasons[0] != "hard loss limit" {
		t.Fatalf("reason=%q", engine.reasons[0])
	}
}

func TestScanHardLossWithoutTarget(t *testing.T) {
	// Hard loss applies even to positions that registered no protective
	// levels.
	engine := &fakeEngine{
		positions: []exchange.Position{
			{Symbol: "BTCUSDT", Side: "short", Contracts: 1, UnrealizedPnL: -5},
		},
	}
	m := New(engine, nil, nil, Config{})
	m.Scan(context.Background())

	if len(engine.closed) != 1 {
		t.Fatalf("closed=%v", engine.closed)
	}
}

func TestScanCloseFailureKeepsTarget(t *testing.T) {
	engine := &fakeEngine{
		positions: []exchange.Position{
			{Symbol: "BTCUSDT", Side: "long", Contracts: 1, MarkPrice: 47000},
		},
		targets: map[string]trader.Target{
			"BTCUSDT": {Symbol: "BTCUSDT", Side: "long", StopLoss: ptr(48000)},
		},
		closeFail: true,
	}
	m := New(engine, nil, nil, Config{})
	m.Scan(context.Background())

	if _, ok := engine.targets["BTCUSDT"]; !ok {
		t.Fatal("target dropped despite failed close")
	}

	// The next cycle retries and succeeds.
	engine.closeFail = false
	m.Scan(context.Background())
	if len(engine.closed) != 1 {
		t.Fatalf("retry did not close: %v", engine.closed)
	}
	if _, ok := engine.targets["BTCUSDT"]; ok {
		t.Fatal("target kept after successful close")
	}
}

func TestScanSurvivesPositionError(t *testing.T) {
	engine := &fakeEngine{positionsErr: errors.New("timeout")}
	m := New(engine, nil, nil, Config{})
	m.Scan(context.Background())
	if m.Status().Cycles != 0 {
		t.Fatal("failed scan counted as cycle")
	}

	engine.positionsErr = nil
	m.Scan(context.Background())
	if m.Status().Cycles != 1 {
		t.Fatalf("cycles=%d, want 1", m.Status().Cycles)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	m := New(engine, nil, nil, Config{Interval: time.Hour})

	m.Start()
	m.Start()
	if !m.Running() {
		t.Fatal("monitor not running after Start")
	}

	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatal("monitor running after Stop")
	}
}

func TestStatusSnapshot(t *testing.T) {
	m := New(&fakeEngine{}, nil, nil, Config{Interval: 2 * time.Second, HardLoss: 7.5})
	st := m.Status()
	if st.Running {
		t.Fatal("reports running before Start")
	}
	if st.Interval != "2s" || st.HardLoss != 7.5 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestMetricsCounters(t *testing.T) {
	metrics := NewSystemMetrics()
	engine := &fakeEngine{
		positions: []exchange.Position{
			{Symbol: "BTCUSDT", Side: "long", Contracts: 1, UnrealizedPnL: -10},
		},
	}
	m := New(engine, nil, metrics, Config{})
	m.Scan(context.Background())

	snap := metrics.GetSnapshot()
	if snap.MonitorCycles != 1 {
		t.Fatalf("MonitorCycles=%d, want 1", snap.MonitorCycles)
	}
	if snap.PositionsClosed != 1 {
		t.Fatalf("PositionsClosed=%d, want 1", snap.PositionsClosed)
	}
}
