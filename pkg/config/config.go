package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading service.
type Config struct {
	Port string

	// CoinEx
	CoinexAPIKey    string
	CoinexAPISecret string
	CoinexBaseURL   string

	// Persistence
	StatePath string
	DBPath    string

	// Risk limits overlay file (YAML, optional)
	RiskConfigPath string

	// Position monitor
	MonitorInterval  time.Duration
	HardLossLimit    float64
	MonitorAutoStart bool

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		CoinexAPIKey:     os.Getenv("COINEX_API_KEY"),
		CoinexAPISecret:  os.Getenv("COINEX_API_SECRET"),
		CoinexBaseURL:    getEnv("COINEX_BASE_URL", ""),
		StatePath:        getEnv("STATE_PATH", "./data/daily_state.json"),
		DBPath:           getEnv("DB_PATH", "./data/trading.db"),
		RiskConfigPath:   getEnv("RISK_CONFIG_PATH", "./config.yaml"),
		MonitorInterval:  time.Duration(getEnvInt("MONITOR_INTERVAL_SEC", 5)) * time.Second,
		HardLossLimit:    getEnvFloat("HARD_LOSS_LIMIT", 5.0),
		MonitorAutoStart: getEnv("MONITOR_AUTO_START", "true") == "true",
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
