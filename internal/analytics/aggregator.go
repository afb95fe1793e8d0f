// Package analytics derives network-wide statistics from account
// profile snapshots: per-tier segment metrics, volatility-event impact
// reports, and the pain leaderboard. Everything here is pure
// computation over data the store has already resolved.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/model"
	"github.com/lossnet/pain-engine/internal/tier"
)

// Aggregate groups profiles by wealth tier (classified on max equity
// seen) and computes segment metrics plus the network pain
// concentration.
func Aggregate(profiles []model.AccountProfile, th tier.Thresholds, now time.Time) model.NetworkMetrics {
	type segAgg struct {
		count       int
		totalLoss   decimal.Decimal
		totalPain   decimal.Decimal
		ratioSum    float64 // per-account pain-per-dollar ratios
		equitySum   decimal.Decimal
	}
	segs := make(map[tier.Tier]*segAgg)

	for _, p := range profiles {
		t := th.Classify(p.MaxEquitySeen)
		seg, ok := segs[t]
		if !ok {
			seg = &segAgg{}
			segs[t] = seg
		}
		seg.count++
		seg.totalLoss = seg.totalLoss.Add(p.TotalDollarLosses)
		seg.totalPain = seg.totalPain.Add(p.TotalPainScore)
		seg.equitySum = seg.equitySum.Add(p.MaxEquitySeen)

		// Per-account multiplier ratio with a $1 floor on losses so a
		// zero denominator never occurs.
		denom := p.TotalDollarLosses.InexactFloat64()
		if denom < 1 {
			denom = 1
		}
		seg.ratioSum += p.TotalPainScore.InexactFloat64() / denom
	}

	segments := make(map[tier.Tier]model.TierMetrics, len(segs))
	for t, seg := range segs {
		m := model.TierMetrics{
			Tier:              t,
			TraderCount:       seg.count,
			TotalDollarLosses: seg.totalLoss,
			TotalPainScore:    seg.totalPain,
			AvgPainMultiplier: seg.ratioSum / float64(seg.count),
			AvgMaxEquity:      seg.equitySum.Div(decimal.NewFromInt(int64(seg.count))),
		}
		if seg.totalLoss.IsPositive() {
			m.PainEfficiency = seg.totalPain.InexactFloat64() / seg.totalLoss.InexactFloat64()
		}
		segments[t] = m
	}

	return model.NetworkMetrics{
		TotalTraders:      len(profiles),
		Segments:          segments,
		PainConcentration: painConcentration(segments),
		GeneratedAt:       now,
	}
}

// painConcentration is the share of pain borne by shrimp and retail
// accounts relative to whales. Defined as 0 when neither group has any
// recorded pain.
func painConcentration(segments map[tier.Tier]model.TierMetrics) float64 {
	retail := segmentPain(segments, tier.Shrimp) + segmentPain(segments, tier.Retail)
	whale := segmentPain(segments, tier.Whale)

	total := retail + whale
	if total == 0 {
		return 0
	}
	return retail / total
}

func segmentPain(segments map[tier.Tier]model.TierMetrics, t tier.Tier) float64 {
	if seg, ok := segments[t]; ok {
		return seg.TotalPainScore.InexactFloat64()
	}
	return 0
}
