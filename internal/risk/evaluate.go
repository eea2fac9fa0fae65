package risk

import (
	"fmt"
	"time"
)

// Decision is the outcome of a trade permission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Evaluate runs the ordered trade permission checks against a snapshot of
// the daily counters. The first failing check wins. Day rollover is the
// caller's responsibility; Evaluate itself has no side effects.
func Evaluate(limits Limits, tradeCount int, realizedPnL float64, lastTrade *time.Time, now time.Time) Decision {
	if tradeCount >= limits.MaxTradesPerDay {
		return Decision{Allowed: false, Reason: fmt.Sprintf("Max daily trades (%d) reached", limits.MaxTradesPerDay)}
	}

	if lastTrade != nil {
		cooldownEnds := lastTrade.Add(limits.Cooldown())
		if now.Before(cooldownEnds) {
			waitMins := cooldownEnds.Sub(now).Minutes()
			return Decision{Allowed: false, Reason: fmt.Sprintf("Cooldown period active. Wait %.1f more minutes", waitMins)}
		}
	}

	if realizedPnL <= -limits.MaxDailyLoss {
		return Decision{Allowed: false, Reason: fmt.Sprintf("Daily loss limit ($%.2f) reached", limits.MaxDailyLoss)}
	}

	return Decision{Allowed: true, Reason: "Trading allowed"}
}
