package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Feature identifies one derived market feature a clause can test.
type Feature string

const (
	FeatureMomentumPct   Feature = "momentum_pct"
	FeatureVolatilityPct Feature = "volatility_pct"
	FeatureVolumeRatio   Feature = "volume_ratio"
	FeaturePriceMAPct    Feature = "price_ma_pct"
)

// String returns the string representation of Feature.
func (f Feature) String() string {
	return string(f)
}

// IsValid checks if the feature is a valid value.
func (f Feature) IsValid() bool {
	switch f {
	case FeatureMomentumPct, FeatureVolatilityPct, FeatureVolumeRatio, FeaturePriceMAPct:
		return true
	}
	return false
}

// FeatureVector is the derived feature set a condition is evaluated against.
type FeatureVector struct {
	MomentumPct   float64 // percent change over the lookback window
	VolatilityPct float64 // stddev of bar returns, in percent
	VolumeRatio   float64 // latest volume / average volume
	PriceMAPct    float64 // percent distance of price from its moving average
}

// Value returns the named feature, false for unknown features.
func (v FeatureVector) Value(f Feature) (float64, bool) {
	switch f {
	case FeatureMomentumPct:
		return v.MomentumPct, true
	case FeatureVolatilityPct:
		return v.VolatilityPct, true
	case FeatureVolumeRatio:
		return v.VolumeRatio, true
	case FeaturePriceMAPct:
		return v.PriceMAPct, true
	}
	return 0, false
}

// Clause is a half-open range test on one feature: Lo <= value < Hi.
// A nil bound is unbounded on that side. Bounds are pointers so conditions
// survive JSON round-trips (JSON has no encoding for infinities).
type Clause struct {
	Feature Feature  `json:"feature"`
	Lo      *float64 `json:"lo,omitempty"`
	Hi      *float64 `json:"hi,omitempty"`
}

// Matches reports whether the feature value falls inside the clause range.
func (c Clause) Matches(v FeatureVector) bool {
	val, ok := v.Value(c.Feature)
	if !ok {
		return false
	}
	if c.Lo != nil && val < *c.Lo {
		return false
	}
	if c.Hi != nil && val >= *c.Hi {
		return false
	}
	return true
}

// Condition is a conjunction of range clauses over snapshot features.
// Its canonical string is the identity of a pattern: two conditions with
// the same canonical form are the same pattern regardless of clause order.
type Condition struct {
	Clauses []Clause `json:"clauses"`
}

// Matches reports whether every clause accepts the feature vector.
// An empty condition matches nothing.
func (c Condition) Matches(v FeatureVector) bool {
	if len(c.Clauses) == 0 {
		return false
	}
	for _, cl := range c.Clauses {
		if !cl.Matches(v) {
			return false
		}
	}
	return true
}

// Canonical returns the order-independent canonical form, e.g.
// "momentum_pct in [0.5,+inf) AND volume_ratio in [1.5,+inf)".
func (c Condition) Canonical() string {
	parts := make([]string, 0, len(c.Clauses))
	for _, cl := range c.Clauses {
		parts = append(parts, fmt.Sprintf("%s in [%s,%s)", cl.Feature, formatBound(cl.Lo, "-inf"), formatBound(cl.Hi, "+inf")))
	}
	sort.Strings(parts)
	return strings.Join(parts, " AND ")
}

// Validate checks structural soundness: at least one clause, known features,
// no duplicate feature, and Lo < Hi where both bounds are set.
func (c Condition) Validate() error {
	if len(c.Clauses) == 0 {
		return fmt.Errorf("condition has no clauses")
	}
	seen := make(map[Feature]bool, len(c.Clauses))
	for _, cl := range c.Clauses {
		if !cl.Feature.IsValid() {
			return fmt.Errorf("unknown feature %q", cl.Feature)
		}
		if seen[cl.Feature] {
			return fmt.Errorf("duplicate clause for feature %q", cl.Feature)
		}
		seen[cl.Feature] = true
		if cl.Lo != nil && cl.Hi != nil && *cl.Lo >= *cl.Hi {
			return fmt.Errorf("feature %q: lo bound %v not below hi bound %v", cl.Feature, *cl.Lo, *cl.Hi)
		}
	}
	return nil
}

func formatBound(b *float64, unbounded string) string {
	if b == nil {
		return unbounded
	}
	return strconv.FormatFloat(*b, 'g', -1, 64)
}
