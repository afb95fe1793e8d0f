package params_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lossnet/pain-engine/internal/params"
	"github.com/lossnet/pain-engine/internal/tier"
)

func TestDefaultValidates(t *testing.T) {
	if err := params.Default().Validate(); err != nil {
		t.Fatalf("default params should validate: %v", err)
	}
}

func writeParams(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write params file: %v", err)
	}
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeParams(t, `
tiers:
  whale_min: 2000000
scoring:
  frequency_step: 0.3
`)

	p, err := params.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Overridden values.
	if p.Tiers.WhaleMin != 2_000_000 {
		t.Errorf("expected whale_min 2000000, got %v", p.Tiers.WhaleMin)
	}
	if p.Scoring.FrequencyStep != 0.3 {
		t.Errorf("expected frequency_step 0.3, got %v", p.Scoring.FrequencyStep)
	}

	// Untouched values keep defaults.
	if p.Tiers.ShrimpMax != 5_000 {
		t.Errorf("shrimp_max should keep default 5000, got %v", p.Tiers.ShrimpMax)
	}
	if p.Scoring.LeverageExponent != 1.5 {
		t.Errorf("leverage_exponent should keep default 1.5, got %v", p.Scoring.LeverageExponent)
	}
	if p.History.DisplayCapacity != 10 {
		t.Errorf("display_capacity should keep default 10, got %d", p.History.DisplayCapacity)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := params.Load("/nonexistent/params.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeParams(t, "tiers: [not a map")
	if _, err := params.Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"inverted tiers", "tiers:\n  shrimp_max: 90000\n"},
		{"zero min multiplier", "scoring:\n  min_multiplier: 0\n"},
		{"negative exponent", "scoring:\n  leverage_exponent: -1\n"},
		{"retention below frequency window", "history:\n  retention_days: 3\n"},
		{"zero capacity", "history:\n  display_capacity: 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeParams(t, tc.yaml)
			if _, err := params.Load(path); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestTierThresholds(t *testing.T) {
	th := params.Default().TierThresholds()

	if got := th.Classify(decimal.NewFromInt(5_000)); got != tier.Shrimp {
		t.Errorf("$5k should classify SHRIMP, got %s", got)
	}
	if got := th.Classify(decimal.NewFromInt(1_000_000)); got != tier.Whale {
		t.Errorf("$1M should classify WHALE, got %s", got)
	}
}
