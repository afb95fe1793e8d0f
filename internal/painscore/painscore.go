// Package painscore implements the pain-weighted loss scoring model:
// a multiplicative six-factor amplifier applied to a raw dollar loss.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Internal transcendental math (pow) runs in float64 for the
// dimensionless factors, with results immediately converted to decimal.
//
// The calculator is pure: it reads the caller-supplied prior history
// and never mutates state. Recording the scored event is the store's
// responsibility, performed after this computation so that the
// frequency factor always reflects history strictly prior to the event
// being scored.
package painscore

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/model"
	"github.com/lossnet/pain-engine/internal/params"
	"github.com/lossnet/pain-engine/internal/tier"
)

// ErrInvalidEvent is the root of all loss-event validation failures.
// Individual failures are *ValidationError values that unwrap to it.
var ErrInvalidEvent = errors.New("painscore: invalid loss event")

// ScoreScale is the number of decimal places for multiplier/score rounding.
const ScoreScale int32 = 8

// Pain level ladder, highest first. Thresholds apply to the clamped
// pain multiplier; first crossing wins.
var painLevels = []struct {
	threshold float64
	level     string
}{
	{100, "EXCRUCIATING"},
	{50, "AGONIZING"},
	{20, "SEVERE"},
	{10, "HIGH"},
	{5, "MODERATE"},
	{2, "MILD"},
}

const levelMinimal = "MINIMAL"

// ValidationError reports a malformed loss event field. The event is
// rejected before any state mutation; no partial score is returned.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("painscore: invalid %s: %s", e.Field, e.Constraint)
}

// Unwrap lets errors.Is(err, ErrInvalidEvent) match any validation failure.
func (e *ValidationError) Unwrap() error { return ErrInvalidEvent }

// Calculator computes pain scores from loss events. It is stateless —
// per-account history is passed as an argument, not stored.
type Calculator struct {
	scoring    params.Scoring
	thresholds tier.Thresholds
}

// NewCalculator creates a calculator from the given parameter set.
func NewCalculator(p params.Params) (*Calculator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		scoring:    p.Scoring,
		thresholds: p.TierThresholds(),
	}, nil
}

// Validate checks a loss event against the ingestion constraints.
// Returns the first violation as a *ValidationError.
//
// Equity must survive the decimal→float64 conversion the factor math
// runs on: a positive decimal below float64's subnormal range collapses
// to 0 and would put a zero denominator under the position risk ratio.
func (c *Calculator) Validate(event model.LossEvent) error {
	switch {
	case event.DollarLoss.LessThanOrEqual(decimal.Zero):
		return &ValidationError{Field: "dollar_loss", Constraint: "must be positive"}
	case event.AccountEquity.LessThanOrEqual(decimal.Zero):
		return &ValidationError{Field: "account_equity", Constraint: "must be positive"}
	case !isFinitePositive(event.AccountEquity.InexactFloat64()):
		return &ValidationError{Field: "account_equity", Constraint: "out of representable range"}
	case event.PositionSize.IsNegative():
		return &ValidationError{Field: "position_size", Constraint: "must be non-negative"}
	case math.IsNaN(event.Leverage) || event.Leverage < 1:
		return &ValidationError{Field: "leverage", Constraint: "must be at least 1"}
	case math.IsNaN(event.Volatility) || event.Volatility < 0 || event.Volatility > 1:
		return &ValidationError{Field: "volatility", Constraint: "must be within [0, 1]"}
	case math.IsNaN(event.TimeInPosition) || event.TimeInPosition < 0:
		return &ValidationError{Field: "time_in_position", Constraint: "must be non-negative"}
	}
	return nil
}

func isFinitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

// Compute scores one loss event against the account's prior pain log.
// prior must contain only entries recorded strictly before the event;
// entries at or after event.Timestamp are ignored defensively when
// counting the frequency window.
func (c *Calculator) Compute(event model.LossEvent, prior []model.PainLogEntry) (model.PainScore, error) {
	if err := c.Validate(event); err != nil {
		return model.PainScore{}, err
	}

	s := c.scoring
	equity := event.AccountEquity.InexactFloat64()
	position := event.PositionSize.InexactFloat64()

	breakdown := model.FactorBreakdown{
		PositionRisk: math.Min(position/equity, 1.0),
		Leverage:     math.Pow(event.Leverage, s.LeverageExponent),
		Volatility:   1 + 2*event.Volatility,
		Time:         math.Min(1+event.TimeInPosition/s.TimeCapHours, 3),
		Wealth:       c.wealthAdjustment(equity),
		Frequency:    1 + s.FrequencyStep*float64(c.countRecent(event.Timestamp, prior)),
	}

	raw := breakdown.Leverage *
		breakdown.PositionRisk *
		breakdown.Volatility *
		breakdown.Time *
		breakdown.Wealth *
		breakdown.Frequency

	clamped := math.Min(raw, s.MaxMultiplier)
	clamped = math.Max(clamped, s.MinMultiplier)

	multiplier := decimal.NewFromFloat(clamped).Round(ScoreScale)
	score := event.DollarLoss.Mul(multiplier).Round(ScoreScale)

	return model.PainScore{
		EventID:           event.ID,
		TraderID:          event.TraderID,
		DollarLoss:        event.DollarLoss,
		PainMultiplier:    multiplier,
		PainWeightedScore: score,
		PainLevel:         Level(clamped),
		TraderTier:        c.thresholds.Classify(event.AccountEquity),
		Breakdown:         breakdown,
		Timestamp:         event.Timestamp,
	}, nil
}

// wealthAdjustment computes the inverse wealth dampener: pain per
// dollar shrinks sub-linearly as equity grows past the retail boundary.
// The floor keeps very large accounts at a minimum adjustment instead
// of letting the multiplier vanish.
func (c *Calculator) wealthAdjustment(equity float64) float64 {
	retailMax := c.thresholds.RetailMax.InexactFloat64()
	dampener := math.Pow(equity/retailMax, c.scoring.WealthExponent)
	return math.Max(c.scoring.WealthFloor, 1/dampener)
}

// countRecent counts prior losses inside the trailing frequency window,
// strictly before the event being scored.
func (c *Calculator) countRecent(at time.Time, prior []model.PainLogEntry) int {
	windowStart := at.Add(-time.Duration(c.scoring.FrequencyWindowDays) * 24 * time.Hour)
	n := 0
	for _, e := range prior {
		if e.Timestamp.Before(at) && !e.Timestamp.Before(windowStart) {
			n++
		}
	}
	return n
}

// Level maps a clamped pain multiplier onto the ordinal pain ladder.
func Level(multiplier float64) string {
	for _, pl := range painLevels {
		if multiplier >= pl.threshold {
			return pl.level
		}
	}
	return levelMinimal
}
