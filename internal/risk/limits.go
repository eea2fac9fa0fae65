package risk

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits holds the risk parameters gating new trades.
type Limits struct {
	MaxTradesPerDay int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	CooldownMinutes int     `json:"cooldown_minutes" yaml:"cooldown_minutes"`
	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"`
}

// DefaultLimits returns the built-in risk parameters.
func DefaultLimits() Limits {
	return Limits{
		MaxTradesPerDay: 5,
		CooldownMinutes: 10,
		MaxDailyLoss:    20.0,
		MaxPositionSize: 5.0,
	}
}

// LoadFile overlays limits from a YAML file on top of the defaults.
// A missing file is not an error; the defaults are returned.
func LoadFile(path string) (Limits, error) {
	limits := DefaultLimits()
	if path == "" {
		return limits, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return limits, nil
		}
		return limits, fmt.Errorf("read risk config: %w", err)
	}
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return DefaultLimits(), fmt.Errorf("parse risk config: %w", err)
	}
	return limits, nil
}

// Cooldown returns the cooldown period as a duration.
func (l Limits) Cooldown() time.Duration {
	return time.Duration(l.CooldownMinutes) * time.Minute
}

// Update carries a partial change to the limits; nil fields are left as is.
type Update struct {
	MaxTradesPerDay *int     `json:"max_trades_per_day"`
	CooldownMinutes *int     `json:"cooldown_minutes"`
	MaxDailyLoss    *float64 `json:"max_daily_loss"`
	MaxPositionSize *float64 `json:"max_position_size"`
}

// Apply overwrites only the fields present in the update.
func (l *Limits) Apply(u Update) {
	if u.MaxTradesPerDay != nil {
		l.MaxTradesPerDay = *u.MaxTradesPerDay
	}
	if u.CooldownMinutes != nil {
		l.CooldownMinutes = *u.CooldownMinutes
	}
	if u.MaxDailyLoss != nil {
		l.MaxDailyLoss = *u.MaxDailyLoss
	}
	if u.MaxPositionSize != nil {
		l.MaxPositionSize = *u.MaxPositionSize
	}
}
