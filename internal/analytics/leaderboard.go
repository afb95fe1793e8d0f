package analytics

import (
	"sort"

	"github.com/lossnet/pain-engine/internal/model"
	"github.com/lossnet/pain-engine/internal/tier"
)

// TopByPain ranks accounts by cumulative pain score, descending.
// profiles must be in first-seen order; the sort is stable so ties keep
// discovery order and output is deterministic.
func TopByPain(profiles []model.AccountProfile, n int, th tier.Thresholds) []model.LeaderboardEntry {
	if n <= 0 {
		return []model.LeaderboardEntry{}
	}

	ranked := make([]model.AccountProfile, len(profiles))
	copy(ranked, profiles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalPainScore.GreaterThan(ranked[j].TotalPainScore)
	})

	if n > len(ranked) {
		n = len(ranked)
	}

	entries := make([]model.LeaderboardEntry, n)
	for i, p := range ranked[:n] {
		entries[i] = model.LeaderboardEntry{
			Rank:              i + 1,
			TraderID:          p.TraderID,
			Tier:              th.Classify(p.MaxEquitySeen),
			TotalPainScore:    p.TotalPainScore,
			TotalDollarLosses: p.TotalDollarLosses,
			LossCount:         p.LossCount,
			MaxPainMultiplier: p.MaxPainMultiplier,
		}
	}
	return entries
}
