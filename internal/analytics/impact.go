package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/model"
	"github.com/lossnet/pain-engine/internal/tier"
)

// VolatilityEvent describes a market-wide volatility episode to report on.
type VolatilityEvent struct {
	Asset           string  `json:"asset"`
	TimeWindowHours float64 `json:"time_window_hours"`
}

// AnalyzeImpact filters every account's pain log to entries inside
// [now - window, now], tags each by the owning account's tier
// (classified on max equity seen), and reports tier-segmented damage.
func AnalyzeImpact(ev VolatilityEvent, profiles []model.AccountProfile, now time.Time, th tier.Thresholds) model.ImpactReport {
	windowStart := now.Add(-time.Duration(ev.TimeWindowHours * float64(time.Hour)))

	type impactAgg struct {
		accounts  int
		totalLoss decimal.Decimal
		totalPain decimal.Decimal
		multSum   float64
		entries   int
	}
	aggs := make(map[tier.Tier]*impactAgg)

	for _, p := range profiles {
		var hit []model.PainLogEntry
		for _, e := range p.PainLog {
			if !e.Timestamp.Before(windowStart) && !e.Timestamp.After(now) {
				hit = append(hit, e)
			}
		}
		if len(hit) == 0 {
			continue
		}

		t := th.Classify(p.MaxEquitySeen)
		agg, ok := aggs[t]
		if !ok {
			agg = &impactAgg{}
			aggs[t] = agg
		}
		agg.accounts++
		for _, e := range hit {
			agg.totalLoss = agg.totalLoss.Add(e.DollarLoss)
			agg.totalPain = agg.totalPain.Add(e.PainScore)
			agg.multSum += e.Multiplier.InexactFloat64()
			agg.entries++
		}
	}

	tiers := make(map[tier.Tier]model.TierImpact, len(aggs))
	for t, agg := range aggs {
		tiers[t] = model.TierImpact{
			Tier:             t,
			AffectedAccounts: agg.accounts,
			TotalDollarLoss:  agg.totalLoss,
			TotalPainScore:   agg.totalPain,
			AvgMultiplier:    agg.multSum / float64(agg.entries),
			PainPerAccount:   agg.totalPain.Div(decimal.NewFromInt(int64(agg.accounts))),
		}
	}

	report := model.ImpactReport{
		Asset:           ev.Asset,
		TimeWindowHours: ev.TimeWindowHours,
		WindowStart:     windowStart,
		WindowEnd:       now,
		Tiers:           tiers,
	}

	retailPain := tierPain(tiers, tier.Shrimp) + tierPain(tiers, tier.Retail)
	whalePain := tierPain(tiers, tier.Whale)
	if whalePain > 0 {
		report.PainConcentrationRatio = retailPain / whalePain
		report.RatioDefined = true
	}
	return report
}

func tierPain(tiers map[tier.Tier]model.TierImpact, t tier.Tier) float64 {
	if imp, ok := tiers[t]; ok {
		return imp.TotalPainScore.InexactFloat64()
	}
	return 0
}
