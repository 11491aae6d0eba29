package tournament

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
)

// legResult is one pattern's backtest over a slice.
type legResult struct {
	// ROI is the summed per-trade return in percent, before any
	// timeframe bonus.
	ROI float64

	// Volatility is the sample stddev of per-trade returns in percent,
	// zero with fewer than two trades.
	Volatility float64

	Trades int
}

// simulateLeg replays one pattern's rule over a candle slice: derive
// features from the trailing lookback window at each bar, enter when
// the condition matches, hold for exactly one candle, and realize that
// candle's intra-bar return.
func simulateLeg(symbol string, cond domain.Condition, bars []*domain.Candle, lookback int) (legResult, error) {
	var returns []float64

	// The last bar has no follow-up candle to realize a trade in.
	for i := lookback - 1; i < len(bars)-1; i++ {
		window := bars[i-lookback+1 : i+1]
		snap, err := market.ComputeSnapshot(symbol, window)
		if err != nil {
			return legResult{}, fmt.Errorf("features at bar %d: %w", i, err)
		}
		if cond.Matches(snap.Features()) {
			returns = append(returns, bars[i+1].Return()*100)
		}
	}

	result := legResult{Trades: len(returns)}
	for _, r := range returns {
		result.ROI += r
	}
	if len(returns) >= 2 {
		result.Volatility = stat.StdDev(returns, nil)
	}
	return result, nil
}
