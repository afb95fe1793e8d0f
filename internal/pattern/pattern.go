// Package pattern derives qualitative labels and free-text insights
// from a single scored loss event: the dominant pain source, a behavior
// pattern, a risk bucket, sustainability, and a recovery-likelihood
// estimate.
//
// Classification is data-driven: behavior patterns are an ordered list
// of (predicate, label) rules evaluated in priority order, first match
// wins. The rules read only the factor breakdown and tier, never the
// raw event.
package pattern

import (
	"math"

	"github.com/lossnet/pain-engine/internal/model"
	"github.com/lossnet/pain-engine/internal/tier"
)

// Analysis is the full qualitative read of one scored loss.
type Analysis struct {
	PrimarySource      SourceReport `json:"primary_source"`
	BehaviorPattern    string       `json:"behavior_pattern"`
	RiskProfile        string       `json:"risk_profile"`
	Sustainability     string       `json:"sustainability"`
	RecoveryLikelihood float64      `json:"recovery_likelihood"`
	Insights           []string     `json:"insights"`
}

// SourceReport names the factor contributing most to the pain
// multiplier, with its normalized intensity in [0,1].
type SourceReport struct {
	Factor      string  `json:"factor"`
	Intensity   float64 `json:"intensity"`
	Description string  `json:"description"`
}

// Factor thresholds used by the rule cascade. Leverage thresholds are
// expressed on the leverage pain factor (leverage^1.5): 10x leverage ≈
// 31.62, 3x ≈ 5.20, 20x ≈ 89.44.
const (
	highLeverageFactor     = 31.62
	lowLeverageFactor      = 5.20
	veryHighLeverageFactor = 89.44

	highPositionRisk     = 0.70
	veryHighPositionRisk = 0.95
	lowPositionRisk      = 0.30

	highFrequencyFactor = 1.6 // three or more losses inside the window
)

// Tier-dependent base pain tolerance for the sustainability ratio.
var baseTolerance = map[tier.Tier]float64{
	tier.Whale:  50,
	tier.Fish:   20,
	tier.Retail: 10,
	tier.Shrimp: 5,
}

// behaviorRule pairs a predicate with its label. Rules are evaluated in
// slice order; the first match wins.
type behaviorRule struct {
	label string
	match func(b model.FactorBreakdown, t tier.Tier) bool
}

var behaviorRules = []behaviorRule{
	{"Degenerate Gambler", func(b model.FactorBreakdown, _ tier.Tier) bool {
		return b.Leverage >= highLeverageFactor && b.PositionRisk >= highPositionRisk
	}},
	{"Compulsive Trader", func(b model.FactorBreakdown, _ tier.Tier) bool {
		return b.Frequency >= highFrequencyFactor
	}},
	{"All-In Addict", func(b model.FactorBreakdown, _ tier.Tier) bool {
		return b.PositionRisk >= veryHighPositionRisk
	}},
	{"Conservative Whale", func(b model.FactorBreakdown, t tier.Tier) bool {
		return t == tier.Whale && b.Leverage <= lowLeverageFactor
	}},
	{"Desperate Shrimp", func(b model.FactorBreakdown, t tier.Tier) bool {
		return t == tier.Shrimp && b.Leverage >= highLeverageFactor
	}},
	{"Standard Retail", func(_ model.FactorBreakdown, _ tier.Tier) bool {
		return true
	}},
}

// sourceBand is one description band for a pain source.
type sourceBand struct {
	min  float64
	text string
}

// painSource normalizes one breakdown factor into [0,1] and carries its
// threshold-banded descriptions, highest band first.
type painSource struct {
	name      string
	normalize func(b model.FactorBreakdown) float64
	bands     []sourceBand
}

var painSources = []painSource{
	{
		name:      "leverage",
		normalize: func(b model.FactorBreakdown) float64 { return clamp01(b.Leverage / highLeverageFactor) },
		bands: []sourceBand{
			{0.8, "extreme leverage amplified this loss far beyond its dollar size"},
			{0.5, "heavy leverage multiplied the pain of this position"},
			{0, "leverage contributed the largest share of this loss's pain"},
		},
	},
	{
		name:      "position size",
		normalize: func(b model.FactorBreakdown) float64 { return clamp01(b.PositionRisk) },
		bands: []sourceBand{
			{0.9, "nearly the entire account was riding on a single position"},
			{0.5, "an oversized position relative to equity drove the damage"},
			{0, "position sizing was the dominant pain factor"},
		},
	},
	{
		name:      "volatility",
		normalize: func(b model.FactorBreakdown) float64 { return clamp01((b.Volatility - 1) / 2) },
		bands: []sourceBand{
			{0.8, "the loss landed in a violently volatile market"},
			{0.5, "elevated market volatility sharpened the loss"},
			{0, "market volatility was the leading pain contributor"},
		},
	},
	{
		name:      "timing",
		normalize: func(b model.FactorBreakdown) float64 { return clamp01((b.Time - 1) / 2) },
		bands: []sourceBand{
			{0.8, "the position bled out over days before being closed"},
			{0.5, "a long hold let the loss compound"},
			{0, "hold duration added the most to this loss's pain"},
		},
	},
	{
		name:      "frequency",
		normalize: func(b model.FactorBreakdown) float64 { return clamp01(b.Frequency - 1) },
		bands: []sourceBand{
			{0.8, "relentless repeated losses inside the window compounded the pain"},
			{0.4, "a streak of recent losses amplified this one"},
			{0, "loss frequency was the dominant pain factor"},
		},
	},
	{
		name:      "wealth",
		normalize: func(b model.FactorBreakdown) float64 { return clamp01(b.Wealth / 10) },
		bands: []sourceBand{
			{0.8, "a small account absorbed a loss it could barely afford"},
			{0.5, "limited account depth magnified the damage"},
			{0, "account size relative to the loss drove the pain"},
		},
	},
}

// Risk-profile blend weights over normalized leverage, position risk,
// frequency, and volatility.
const (
	riskWeightLeverage   = 0.35
	riskWeightPosition   = 0.25
	riskWeightFrequency  = 0.20
	riskWeightVolatility = 0.20
)

// Analyze derives the qualitative read of one scored loss.
// networkConcentration is the current network-wide pain concentration,
// used only for insight generation; pass a negative value if unknown.
func Analyze(score model.PainScore, networkConcentration float64) Analysis {
	b := score.Breakdown

	a := Analysis{
		PrimarySource:      primarySource(b),
		BehaviorPattern:    behaviorPattern(b, score.TraderTier),
		RiskProfile:        riskProfile(b),
		Sustainability:     sustainability(score),
		RecoveryLikelihood: recoveryLikelihood(b, score.TraderTier),
	}
	a.Insights = insights(score, a, networkConcentration)
	return a
}

func primarySource(b model.FactorBreakdown) SourceReport {
	best := painSources[0]
	bestIntensity := best.normalize(b)
	for _, src := range painSources[1:] {
		if intensity := src.normalize(b); intensity > bestIntensity {
			best = src
			bestIntensity = intensity
		}
	}

	report := SourceReport{Factor: best.name, Intensity: bestIntensity}
	for _, band := range best.bands {
		if bestIntensity >= band.min {
			report.Description = band.text
			break
		}
	}
	return report
}

func behaviorPattern(b model.FactorBreakdown, t tier.Tier) string {
	for _, rule := range behaviorRules {
		if rule.match(b, t) {
			return rule.label
		}
	}
	return "Standard Retail" // unreachable: the last rule always matches
}

func riskProfile(b model.FactorBreakdown) string {
	score := riskWeightLeverage*clamp01(b.Leverage/highLeverageFactor) +
		riskWeightPosition*clamp01(b.PositionRisk) +
		riskWeightFrequency*clamp01(b.Frequency-1) +
		riskWeightVolatility*clamp01((b.Volatility-1)/2)

	switch {
	case score >= 0.75:
		return "Extreme Risk"
	case score >= 0.5:
		return "High Risk"
	case score >= 0.25:
		return "Moderate Risk"
	default:
		return "Low Risk"
	}
}

func sustainability(score model.PainScore) string {
	tolerance := baseTolerance[score.TraderTier]
	mult := score.PainMultiplier.InexactFloat64()
	if mult <= 0 {
		return "Sustainable"
	}

	ratio := tolerance / mult
	switch {
	case ratio >= 2:
		return "Sustainable"
	case ratio >= 1:
		return "Manageable"
	case ratio >= 0.5:
		return "Concerning"
	default:
		return "Unsustainable"
	}
}

func recoveryLikelihood(b model.FactorBreakdown, t tier.Tier) float64 {
	likelihood := 0.5

	switch t {
	case tier.Whale:
		likelihood += 0.3
	case tier.Fish:
		likelihood += 0.1
	case tier.Shrimp:
		likelihood -= 0.2
	}

	switch {
	case b.Leverage <= lowLeverageFactor:
		likelihood += 0.2
	case b.Leverage >= veryHighLeverageFactor:
		likelihood -= 0.3
	}

	switch {
	case b.PositionRisk <= lowPositionRisk:
		likelihood += 0.1
	case b.PositionRisk >= highPositionRisk:
		likelihood -= 0.2
	}

	return clamp01(likelihood)
}

func insights(score model.PainScore, a Analysis, networkConcentration float64) []string {
	var out []string

	if score.PainLevel == "EXCRUCIATING" {
		out = append(out, "Maximum pain level reached: this loss sits at the top of the pain ladder.")
	}
	if score.TraderTier == tier.Whale && score.PainMultiplier.InexactFloat64() >= 2 {
		out = append(out, "Whale pain is rare: the wealth dampener was overwhelmed by the other risk factors.")
	}
	if a.BehaviorPattern == "Degenerate Gambler" {
		out = append(out, "Gambler pattern detected: high leverage stacked on an oversized position.")
	}
	if a.RiskProfile == "Extreme Risk" {
		out = append(out, "Extreme risk profile: nearly every factor is near its ceiling.")
	}
	if a.RecoveryLikelihood < 0.3 {
		out = append(out, "Low recovery probability: account unlikely to regain this loss at current behavior.")
	}
	if networkConcentration > 0.8 {
		out = append(out, "Network pain is heavily concentrated in small accounts right now.")
	}

	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
