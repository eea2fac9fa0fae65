package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"futures-trader/internal/api"
	"futures-trader/internal/events"
	"futures-trader/internal/monitor"
	"futures-trader/internal/risk"
	"futures-trader/internal/state"
	"futures-trader/internal/trader"
	"futures-trader/pkg/config"
	"futures-trader/pkg/db"
	"futures-trader/pkg/exchange/coinex"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}
	log.Printf("starting futures trader %s on port %s", buildVersion, cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// Risk limits: defaults overlaid by the optional YAML file.
	limits, err := risk.LoadFile(cfg.RiskConfigPath)
	if err != nil {
		log.Fatalf("risk config load failed: %v", err)
	}
	log.Printf("risk limits: %d trades/day, %d min cooldown, $%.2f max loss, $%.2f max size",
		limits.MaxTradesPerDay, limits.CooldownMinutes, limits.MaxDailyLoss, limits.MaxPositionSize)

	// Exchange gateway
	gateway := coinex.NewClient(coinex.Config{
		APIKey:    cfg.CoinexAPIKey,
		APISecret: cfg.CoinexAPISecret,
		BaseURL:   cfg.CoinexBaseURL,
	})
	gateway.StartTimeSync(ctx)

	// Trading engine with persisted daily state
	engine, err := trader.New(trader.Config{
		Gateway: gateway,
		Store:   state.NewStore(cfg.StatePath),
		Journal: database,
		Bus:     bus,
		Limits:  limits,
	})
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}

	// System metrics for monitoring
	sysMetrics := monitor.NewSystemMetrics()

	// Position monitor (stop loss / take profit / hard loss)
	mon := monitor.New(engine, bus, sysMetrics, monitor.Config{
		Interval: cfg.MonitorInterval,
		HardLoss: cfg.HardLossLimit,
	})
	if cfg.MonitorAutoStart {
		mon.Start()
	}
	defer mon.Stop()

	// Risk alerts to the process log
	monitor.WatchRiskAlerts(ctx, bus, monitor.LogSink{})

	// API
	server := api.NewServer(
		bus,
		database,
		engine,
		mon,
		sysMetrics,
		api.SystemMeta{
			Venue:   "coinex",
			Version: buildVersion,
		},
		cfg.JWTSecret,
	)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
