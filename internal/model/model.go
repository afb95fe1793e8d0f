// Package model defines the core domain types shared across the pain engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/tier"
)

// LossEvent is an immutable record of a realized trading loss.
// Once recorded, these are never modified or deleted.
type LossEvent struct {
	ID             string          `json:"id" db:"id"`
	TraderID       string          `json:"trader_id" db:"trader_id"`
	Asset          string          `json:"asset,omitempty" db:"asset"`
	DollarLoss     decimal.Decimal `json:"dollar_loss" db:"dollar_loss"`         // realized loss, USD, > 0
	AccountEquity  decimal.Decimal `json:"account_equity" db:"account_equity"`   // total account value at time of loss, > 0
	PositionSize   decimal.Decimal `json:"position_size" db:"position_size"`     // absolute losing position size, USD
	Leverage       float64         `json:"leverage" db:"leverage"`               // leverage multiple, >= 1
	Volatility     float64         `json:"volatility" db:"volatility"`           // normalized asset volatility in [0,1]
	TimeInPosition float64         `json:"time_in_position" db:"time_in_position"` // hours held, >= 0
	Timestamp      time.Time       `json:"timestamp" db:"timestamp"`
}

// FactorBreakdown records the six component factors that multiply into
// the pain multiplier. Factors are dimensionless and kept as float64;
// the monetary quantities they scale stay decimal.
type FactorBreakdown struct {
	PositionRisk float64 `json:"position_risk"` // positionSize/equity, capped at 1
	Leverage     float64 `json:"leverage"`      // leverage^1.5
	Volatility   float64 `json:"volatility"`    // 1 + 2*vol, in [1,3]
	Time         float64 `json:"time"`          // 1 + hours/24, capped at 3
	Wealth       float64 `json:"wealth"`        // max(0.1, (equity/retailMax)^-0.7)
	Frequency    float64 `json:"frequency"`     // 1 + 0.2*recentLossCount
}

// PainScore is the output of scoring a single loss event.
type PainScore struct {
	EventID           string          `json:"event_id"`
	TraderID          string          `json:"trader_id"`
	DollarLoss        decimal.Decimal `json:"dollar_loss"`
	PainMultiplier    decimal.Decimal `json:"pain_multiplier"`
	PainWeightedScore decimal.Decimal `json:"pain_weighted_score"`
	PainLevel         string          `json:"pain_level"`
	TraderTier        tier.Tier       `json:"trader_tier"`
	Breakdown         FactorBreakdown `json:"breakdown"`
	Timestamp         time.Time       `json:"timestamp"`
}

// PainLogEntry is one row of an account's frequency-tracking pain log.
// The log is time-pruned beyond a retention horizon; the frequency
// factor only ever looks back over a trailing window.
type PainLogEntry struct {
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
	DollarLoss decimal.Decimal `json:"dollar_loss" db:"dollar_loss"`
	PainScore  decimal.Decimal `json:"pain_score" db:"pain_score"`
	Multiplier decimal.Decimal `json:"multiplier" db:"multiplier"`
}

// AccountProfile is the per-account cumulative state, one per trader,
// created lazily on the first loss event and mutated in place after.
type AccountProfile struct {
	TraderID          string          `json:"trader_id"`
	FirstSeen         time.Time       `json:"first_seen"`
	TotalDollarLosses decimal.Decimal `json:"total_dollar_losses"`
	TotalPainScore    decimal.Decimal `json:"total_pain_score"`
	LossCount         int             `json:"loss_count"`
	MaxEquitySeen     decimal.Decimal `json:"max_equity_seen"`
	MinEquitySeen     decimal.Decimal `json:"min_equity_seen"`
	AvgLeverage       float64         `json:"avg_leverage"`
	MaxPainMultiplier decimal.Decimal `json:"max_pain_multiplier"`

	// RecentHistory is a count-capped display log (oldest evicted first).
	// It is intentionally separate from PainLog: conflating them would
	// make the frequency window depend on display capacity.
	RecentHistory []LossEvent `json:"recent_history"`

	// PainLog is the time-bounded frequency-tracking log.
	PainLog []PainLogEntry `json:"pain_log"`
}

// TierMetrics summarizes one wealth tier's share of network pain.
type TierMetrics struct {
	Tier              tier.Tier       `json:"tier"`
	TraderCount       int             `json:"trader_count"`
	TotalDollarLosses decimal.Decimal `json:"total_dollar_losses"`
	TotalPainScore    decimal.Decimal `json:"total_pain_score"`
	AvgPainMultiplier float64         `json:"avg_pain_multiplier"` // mean of per-account pain/loss ratios
	PainEfficiency    float64         `json:"pain_efficiency"`     // totalPain / totalLoss
	AvgMaxEquity      decimal.Decimal `json:"avg_max_equity"`
}

// NetworkMetrics is the per-tier rollup of every tracked profile.
type NetworkMetrics struct {
	TotalTraders int                       `json:"total_traders"`
	Segments     map[tier.Tier]TierMetrics `json:"segments"`

	// PainConcentration is the share of total pain borne by shrimp and
	// retail accounts relative to whales, in [0,1]; 0 when no pain has
	// been recorded in either group.
	PainConcentration float64   `json:"pain_concentration"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// TierImpact is one tier's slice of a volatility event's damage.
type TierImpact struct {
	Tier             tier.Tier       `json:"tier"`
	AffectedAccounts int             `json:"affected_accounts"`
	TotalDollarLoss  decimal.Decimal `json:"total_dollar_loss"`
	TotalPainScore   decimal.Decimal `json:"total_pain_score"`
	AvgMultiplier    float64         `json:"avg_multiplier"`
	PainPerAccount   decimal.Decimal `json:"pain_per_account"`
}

// ImpactReport is the tier-segmented damage report for one volatility
// event window.
type ImpactReport struct {
	Asset           string                   `json:"asset"`
	TimeWindowHours float64                  `json:"time_window_hours"`
	WindowStart     time.Time                `json:"window_start"`
	WindowEnd       time.Time                `json:"window_end"`
	Tiers           map[tier.Tier]TierImpact `json:"tiers"`

	// PainConcentrationRatio is retail pain divided by whale pain for
	// the filtered window. When no whale pain was recorded the ratio is
	// undefined; RatioDefined is false and the ratio field holds 0.
	PainConcentrationRatio float64 `json:"pain_concentration_ratio"`
	RatioDefined           bool    `json:"ratio_defined"`
}

// LeaderboardEntry is one ranked row of the pain leaderboard.
type LeaderboardEntry struct {
	Rank              int             `json:"rank"`
	TraderID          string          `json:"trader_id"`
	Tier              tier.Tier       `json:"tier"`
	TotalPainScore    decimal.Decimal `json:"total_pain_score"`
	TotalDollarLosses decimal.Decimal `json:"total_dollar_losses"`
	LossCount         int             `json:"loss_count"`
	MaxPainMultiplier decimal.Decimal `json:"max_pain_multiplier"`
}
