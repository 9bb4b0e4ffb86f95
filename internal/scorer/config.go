// Package scorer computes marketing qualification scores, insights, and
// recommendations from enriched company profiles.
package scorer

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// RevenueTier maps an annual revenue floor to points.
type RevenueTier struct {
	Threshold int64 `mapstructure:"threshold"`
	Points    int   `mapstructure:"points"`
}

// CountTier maps an employee count floor to points.
type CountTier struct {
	Threshold int64 `mapstructure:"threshold"`
	Points    int   `mapstructure:"points"`
}

// RatioTier maps a spend-to-revenue ratio floor to points.
type RatioTier struct {
	Threshold float64 `mapstructure:"threshold"`
	Points    int     `mapstructure:"points"`
}

// Config holds the scoring tier tables. Tiers are consulted top-down and
// the first threshold at or below the value wins.
type Config struct {
	RevenueTiers   []RevenueTier `mapstructure:"revenue_tiers"`
	EmployeeTiers  []CountTier   `mapstructure:"employee_tiers"`
	MarketingTiers []RatioTier   `mapstructure:"marketing_tiers"`
	RDTiers        []RatioTier   `mapstructure:"rd_tiers"`

	// TechPointsEach and TechScoreCap bound the no-financials fallback.
	TechPointsEach int `mapstructure:"tech_points_each"`
	TechScoreCap   int `mapstructure:"tech_score_cap"`

	MaxScore int `mapstructure:"max_score"`
}

// DefaultConfig returns the standard tier tables.
func DefaultConfig() Config {
	return Config{
		RevenueTiers: []RevenueTier{
			{1_000_000_000_000, 100},
			{100_000_000_000, 90},
			{10_000_000_000, 80},
			{1_000_000_000, 70},
			{500_000_000, 60},
			{100_000_000, 50},
			{10_000_000, 40},
			{1_000_000, 30},
		},
		EmployeeTiers: []CountTier{
			{100_000, 25},
			{10_000, 20},
			{1_000, 15},
			{100, 10},
		},
		MarketingTiers: []RatioTier{
			{0.20, 20},
			{0.10, 15},
			{0.05, 10},
			{0.02, 5},
		},
		RDTiers: []RatioTier{
			{0.20, 15},
			{0.10, 10},
			{0.05, 5},
		},
		TechPointsEach: 5,
		TechScoreCap:   40,
		MaxScore:       100,
	}
}

// Validate checks that a Config is internally consistent: tier tables
// must be non-empty and sorted by descending threshold.
func Validate(c Config) error {
	var errs []string

	if c.MaxScore <= 0 {
		errs = append(errs, "max_score must be > 0")
	}
	if c.TechPointsEach < 0 {
		errs = append(errs, "tech_points_each must be >= 0")
	}
	if c.TechScoreCap < 0 {
		errs = append(errs, "tech_score_cap must be >= 0")
	}

	if len(c.RevenueTiers) == 0 {
		errs = append(errs, "revenue_tiers must not be empty")
	}
	for i := 1; i < len(c.RevenueTiers); i++ {
		if c.RevenueTiers[i].Threshold >= c.RevenueTiers[i-1].Threshold {
			errs = append(errs, "revenue_tiers must be sorted by descending threshold")
			break
		}
	}
	for i := 1; i < len(c.EmployeeTiers); i++ {
		if c.EmployeeTiers[i].Threshold >= c.EmployeeTiers[i-1].Threshold {
			errs = append(errs, "employee_tiers must be sorted by descending threshold")
			break
		}
	}
	for i := 1; i < len(c.MarketingTiers); i++ {
		if c.MarketingTiers[i].Threshold >= c.MarketingTiers[i-1].Threshold {
			errs = append(errs, "marketing_tiers must be sorted by descending threshold")
			break
		}
	}
	for i := 1; i < len(c.RDTiers); i++ {
		if c.RDTiers[i].Threshold >= c.RDTiers[i-1].Threshold {
			errs = append(errs, "rd_tiers must be sorted by descending threshold")
			break
		}
	}
	for _, t := range c.MarketingTiers {
		if t.Threshold <= 0 || math.IsNaN(t.Threshold) {
			errs = append(errs, "marketing_tiers thresholds must be positive")
			break
		}
	}
	for _, t := range c.RDTiers {
		if t.Threshold <= 0 || math.IsNaN(t.Threshold) {
			errs = append(errs, "rd_tiers thresholds must be positive")
			break
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
