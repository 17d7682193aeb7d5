package watcher

import (
	"github.com/shopspring/decimal"

	"github.com/jingkaihe/pricewatch/pkg/types/watch"
)

// EvaluateAlerts compares an observed price with the item's prior current
// price and its target. A nil observed price never alerts. Both alerts can
// fire on the same check, and nothing suppresses repeats on later checks.
func EvaluateAlerts(prior, target, observed *float64) []watch.Alert {
	alerts := []watch.Alert{}
	if observed == nil {
		return alerts
	}
	newPrice := *observed

	if prior != nil && newPrice < *prior {
		alerts = append(alerts, watch.Alert{
			Type:        watch.AlertPriceDrop,
			OldPrice:    watch.Float(*prior),
			NewPrice:    newPrice,
			DropPercent: watch.Float(dropPercent(*prior, newPrice)),
		})
	}

	if target != nil && newPrice <= *target {
		alerts = append(alerts, watch.Alert{
			Type:        watch.AlertTargetHit,
			TargetPrice: watch.Float(*target),
			NewPrice:    newPrice,
		})
	}

	return alerts
}

// dropPercent is (old-new)/old*100 rounded to two decimals, or 0 when old
// is not positive.
func dropPercent(oldPrice, newPrice float64) float64 {
	if oldPrice <= 0 {
		return 0
	}
	old := decimal.NewFromFloat(oldPrice)
	pct := old.Sub(decimal.NewFromFloat(newPrice)).Div(old).Mul(decimal.NewFromInt(100)).Round(2)
	f, _ := pct.Float64()
	return f
}
