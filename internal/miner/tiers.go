package miner

import (
	"fmt"
	"strings"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// TierScheme discretizes one snapshot feature into labeled tiers.
// Bounds are ascending cut points; tier i covers [Bounds[i-1], Bounds[i])
// with the first tier unbounded below and the last unbounded above.
// Labels has exactly len(Bounds)+1 entries.
type TierScheme struct {
	Feature domain.Feature
	Labels  []string
	Bounds  []float64
}

// Validate checks the scheme shape.
func (s TierScheme) Validate() error {
	if !s.Feature.IsValid() {
		return fmt.Errorf("invalid feature %q", s.Feature)
	}
	if len(s.Labels) != len(s.Bounds)+1 {
		return fmt.Errorf("feature %s: %d labels for %d bounds, want %d",
			s.Feature, len(s.Labels), len(s.Bounds), len(s.Bounds)+1)
	}
	for i := 1; i < len(s.Bounds); i++ {
		if s.Bounds[i] <= s.Bounds[i-1] {
			return fmt.Errorf("feature %s: bounds not ascending at index %d", s.Feature, i)
		}
	}
	return nil
}

// TierOf returns the tier index for a feature value.
func (s TierScheme) TierOf(v float64) int {
	for i, b := range s.Bounds {
		if v < b {
			return i
		}
	}
	return len(s.Bounds)
}

// Clause returns the half-open range clause covering tier i.
func (s TierScheme) Clause(i int) domain.Clause {
	c := domain.Clause{Feature: s.Feature}
	if i > 0 {
		lo := s.Bounds[i-1]
		c.Lo = &lo
	}
	if i < len(s.Bounds) {
		hi := s.Bounds[i]
		c.Hi = &hi
	}
	return c
}

// DefaultSchemes returns the stock discretization: momentum direction,
// volatility regime, and relative volume.
func DefaultSchemes() []TierScheme {
	return []TierScheme{
		{
			Feature: domain.FeatureMomentumPct,
			Labels:  []string{"strong-down", "down", "flat", "up", "strong-up"},
			Bounds:  []float64{-2, -0.5, 0.5, 2},
		},
		{
			Feature: domain.FeatureVolatilityPct,
			Labels:  []string{"calm", "active", "wild"},
			Bounds:  []float64{1, 3},
		},
		{
			Feature: domain.FeatureVolumeRatio,
			Labels:  []string{"quiet", "normal", "heavy"},
			Bounds:  []float64{0.8, 1.5},
		},
	}
}

// bucketKey builds the map key for a tier combination.
func bucketKey(tiers []int) string {
	parts := make([]string, len(tiers))
	for i, t := range tiers {
		parts[i] = fmt.Sprintf("%d", t)
	}
	return strings.Join(parts, "|")
}

// bucketCondition builds the structured predicate for a tier combination.
func bucketCondition(schemes []TierScheme, tiers []int) domain.Condition {
	clauses := make([]domain.Clause, len(schemes))
	for i, s := range schemes {
		clauses[i] = s.Clause(tiers[i])
	}
	return domain.Condition{Clauses: clauses}
}

// bucketName builds the human-readable pattern name for a tier
// combination, e.g. "up momentum, calm volatility, heavy volume".
func bucketName(schemes []TierScheme, tiers []int) string {
	parts := make([]string, len(schemes))
	for i, s := range schemes {
		label := s.Labels[tiers[i]]
		switch s.Feature {
		case domain.FeatureMomentumPct:
			parts[i] = label + " momentum"
		case domain.FeatureVolatilityPct:
			parts[i] = label + " volatility"
		case domain.FeatureVolumeRatio:
			parts[i] = label + " volume"
		case domain.FeaturePriceMAPct:
			parts[i] = label + " vs moving average"
		default:
			parts[i] = fmt.Sprintf("%s %s", label, s.Feature)
		}
	}
	return strings.Join(parts, ", ")
}
