// Package params holds the tunable engine parameters: tier boundaries,
// scoring coefficients, and history retention. Parameters ship with
// validated in-code defaults and can be overridden from a YAML file.
package params

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/lossnet/pain-engine/internal/tier"
)

// Tiers configures the wealth-tier boundaries in USD.
type Tiers struct {
	ShrimpMax float64 `yaml:"shrimp_max"`
	RetailMax float64 `yaml:"retail_max"`
	WhaleMin  float64 `yaml:"whale_min"`
}

// Scoring configures the pain multiplier model.
type Scoring struct {
	LeverageExponent    float64 `yaml:"leverage_exponent"`     // super-linear leverage pain
	WealthExponent      float64 `yaml:"wealth_exponent"`       // sub-linear wealth dampening
	WealthFloor         float64 `yaml:"wealth_floor"`          // lower clamp on the wealth adjustment
	FrequencyStep       float64 `yaml:"frequency_step"`        // per recent loss inside the window
	FrequencyWindowDays int     `yaml:"frequency_window_days"` // trailing window for the frequency factor
	TimeCapHours        float64 `yaml:"time_cap_hours"`        // holds beyond this saturate the time factor
	MinMultiplier       float64 `yaml:"min_multiplier"`
	MaxMultiplier       float64 `yaml:"max_multiplier"`
}

// History configures per-account log retention.
type History struct {
	DisplayCapacity int `yaml:"display_capacity"` // recent-history ring size
	RetentionDays   int `yaml:"retention_days"`   // pain-log pruning horizon
}

// Params is the full engine parameter set.
type Params struct {
	Tiers   Tiers   `yaml:"tiers"`
	Scoring Scoring `yaml:"scoring"`
	History History `yaml:"history"`
}

// Default returns the standard parameter set.
func Default() Params {
	return Params{
		Tiers: Tiers{
			ShrimpMax: 5_000,
			RetailMax: 50_000,
			WhaleMin:  1_000_000,
		},
		Scoring: Scoring{
			LeverageExponent:    1.5,
			WealthExponent:      0.7,
			WealthFloor:         0.1,
			FrequencyStep:       0.2,
			FrequencyWindowDays: 7,
			TimeCapHours:        24,
			MinMultiplier:       0.01,
			MaxMultiplier:       1000,
		},
		History: History{
			DisplayCapacity: 10,
			RetentionDays:   30,
		},
	}
}

// Load reads parameters from a YAML file, layering the file's values
// over the defaults, and validates the result.
func Load(path string) (Params, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("params: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("params: parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks internal consistency of the parameter set.
func (p Params) Validate() error {
	if err := p.TierThresholds().Validate(); err != nil {
		return err
	}
	s := p.Scoring
	if s.MinMultiplier <= 0 || s.MaxMultiplier <= s.MinMultiplier {
		return fmt.Errorf("params: multiplier bounds must satisfy 0 < min < max, got [%g, %g]",
			s.MinMultiplier, s.MaxMultiplier)
	}
	if s.LeverageExponent <= 0 || s.WealthExponent <= 0 {
		return fmt.Errorf("params: exponents must be positive")
	}
	if s.FrequencyWindowDays <= 0 || s.FrequencyStep < 0 {
		return fmt.Errorf("params: frequency window must be positive and step non-negative")
	}
	if s.TimeCapHours <= 0 {
		return fmt.Errorf("params: time cap must be positive")
	}
	if s.WealthFloor <= 0 {
		return fmt.Errorf("params: wealth floor must be positive")
	}
	h := p.History
	if h.DisplayCapacity <= 0 || h.RetentionDays <= 0 {
		return fmt.Errorf("params: history capacity and retention must be positive")
	}
	if float64(h.RetentionDays) < float64(s.FrequencyWindowDays) {
		return fmt.Errorf("params: retention (%dd) must cover the frequency window (%dd)",
			h.RetentionDays, s.FrequencyWindowDays)
	}
	return nil
}

// TierThresholds converts the tier parameters to classifier thresholds.
func (p Params) TierThresholds() tier.Thresholds {
	return tier.Thresholds{
		ShrimpMax: decimal.NewFromFloat(p.Tiers.ShrimpMax),
		RetailMax: decimal.NewFromFloat(p.Tiers.RetailMax),
		WhaleMin:  decimal.NewFromFloat(p.Tiers.WhaleMin),
	}
}
