package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"futures-trader/internal/events"
	"futures-trader/internal/trader"
	"futures-trader/pkg/exchange"
)

// Engine is the slice of the trading engine the monitor needs: open
// positions, protective targets and forced closes.
type Engine interface {
	Positions(ctx context.Context) ([]exchange.Position, error)
	MatchTarget(symbol string) (trader.Target, bool)
	RemoveTarget(symbol string)
	ClosePositionWithReason(ctx context.Context, symbol, reason string) trader.Result
}

// Config tunes the position monitor.
type Config struct {
	// Interval between scan cycles. Defaults to 5s.
	Interval time.Duration
	// HardLoss closes any position whose unrealized loss reaches this
	// many dollars, whether or not it has a protective target.
	// Defaults to 5.
	HardLoss float64
}

// Monitor periodically scans open positions and closes the ones that
// hit their stop loss, take profit or the hard loss threshold. Closing
// happens with reduce-only market orders through the engine; there are
// no protective orders resting on the venue, so positions are only
// covered while the monitor runs.
type Monitor struct {
	engine   Engine
	bus      *events.Bus
	metrics  *SystemMetrics
	interval time.Duration
	hardLoss float64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	cycles  uint64
	lastRun time.Time
}

// Status is the monitor state reported over the API.
type Status struct {
	Running  bool      `json:"running"`
	Interval string    `json:"interval"`
	HardLoss float64   `json:"hard_loss"`
	Cycles   uint64    `json:"cycles"`
	LastRun  time.Time `json:"last_run,omitempty"`
}

func New(engine Engine, bus *events.Bus, metrics *SystemMetrics, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.HardLoss <= 0 {
		cfg.HardLoss = 5
	}
	return &Monitor{
		engine:   engine,
		bus:      bus,
		metrics:  metrics,
		interval: cfg.Interval,
		hardLoss: cfg.HardLoss,
	}
}

// Start launches the scan loop. Calling Start on a running monitor is
// a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	log.Printf("position monitor started: interval=%s hard_loss=$%.2f", m.interval, m.hardLoss)
	go m.loop(stop, done)
}

// Stop halts the loop and waits for the in-flight cycle to finish.
// Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
	log.Println("position monitor stopped")
}

// Running reports whether the scan loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status returns a snapshot of the monitor state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:  m.running,
		Interval: m.interval.String(),
		HardLoss: m.hardLoss,
		Cycles:   m.cycles,
		LastRun:  m.lastRun,
	}
}

func (m *Monitor) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Scan(context.Background())
		}
	}
}

// Scan runs one monitoring cycle. Exported so a cycle can be driven
// directly without the ticker.
func (m *Monitor) Scan(ctx context.Context) {
	positions, err := m.engine.Positions(ctx)
	if err != nil {
		log.Printf("monitor: fetch positions failed: %v", err)
		return
	}

	for _, pos := range positions {
		if reason, hit := m.checkPosition(pos); hit {
			res := m.engine.ClosePositionWithReason(ctx, pos.Symbol, reason)
			if !res.Success {
				// Leave the target in place so the next cycle retries.
				log.Printf("monitor: close %s (%s) failed: %s", pos.Symbol, reason, res.Message)
				continue
			}
			log.Printf("monitor: closed %s: %s", pos.Symbol, reason)
			if m.metrics != nil {
				m.metrics.IncrementPositionsClosed()
			}
			// Remove by the registered symbol; matching is tolerant so
			// it may differ from the venue's.
			if tgt, ok := m.engine.MatchTarget(pos.Symbol); ok {
				m.engine.RemoveTarget(tgt.Symbol)
			}
		}
	}

	m.mu.Lock()
	m.cycles++
	m.lastRun = time.Now()
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.IncrementMonitorCycles()
	}
	if m.bus != nil {
		m.bus.Publish(events.EventMonitorCycle, len(positions))
	}
}

// checkPosition decides whether a position must be closed and why.
// Hard loss takes priority, then stop loss, then take profit.
func (m *Monitor) checkPosition(pos exchange.Position) (string, bool) {
	if pos.UnrealizedPnL <= -m.hardLoss {
		return "hard loss limit", true
	}

	target, ok := m.engine.MatchTarget(pos.Symbol)
	if !ok || pos.MarkPrice <= 0 {
		return "", false
	}

	long := pos.Side == "long"
	if target.StopLoss != nil {
		sl := *target.StopLoss
		if (long && pos.MarkPrice <= sl) || (!long && pos.MarkPrice >= sl) {
			return "stop loss", true
		}
	}
	if target.TakeProfit != nil {
		tp := *target.TakeProfit
		if (long && pos.MarkPrice >= tp) || (!long && pos.MarkPrice <= tp) {
			return "take profit", true
		}
	}
	return "", false
}
