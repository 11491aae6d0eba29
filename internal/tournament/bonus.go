package tournament

import "github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"

// DefaultBonuses returns the stock per-timeframe return multipliers.
// Longer timeframes offer fewer trade opportunities per slice, so their
// returns are scaled up to stay comparable with short-timeframe runs.
func DefaultBonuses() map[domain.Timeframe]float64 {
	return map[domain.Timeframe]float64{
		domain.TimeframeM5:  1.0,
		domain.TimeframeM15: 1.1,
		domain.TimeframeH1:  1.25,
		domain.TimeframeH4:  1.5,
		domain.TimeframeD1:  2.0,
	}
}
