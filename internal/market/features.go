package market

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// minSnapshotBars is the smallest window the indicator formulas are
// defined over (volatility needs at least two bar returns).
const minSnapshotBars = 2

// ComputeSnapshot derives a market snapshot from a window of candles.
// Bars must be a validated ascending slice for a single symbol and
// timeframe; the snapshot is stamped at the close of the last bar.
//
// Formulas:
//   - price = close of last bar
//   - momentum_pct = (last close - first close) / first close * 100
//   - moving_avg = mean of closes over the window
//   - volume = volume of last bar
//   - avg_volume = mean of volumes over the window
//   - volatility_pct = sample stddev of intra-bar returns * 100
func ComputeSnapshot(symbol string, bars []*domain.Candle) (*domain.MarketSnapshot, error) {
	if len(bars) < minSnapshotBars {
		return nil, fmt.Errorf("%w: have %d candles for %s, need %d",
			ErrSnapshotUnavailable, len(bars), symbol, minSnapshotBars)
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	returns := make([]float64, len(bars))
	for i, b := range bars {
		if b.Close <= 0 {
			return nil, fmt.Errorf("%w: non-positive close %f at open time %d",
				ErrSnapshotUnavailable, b.Close, b.OpenTime)
		}
		closes[i] = b.Close
		volumes[i] = b.Volume
		returns[i] = b.Return()
	}

	last := bars[len(bars)-1]
	first := bars[0]

	return &domain.MarketSnapshot{
		Symbol:        symbol,
		CapturedAt:    last.CloseTime(),
		Price:         last.Close,
		MomentumPct:   (last.Close - first.Close) / first.Close * 100,
		MovingAvg:     stat.Mean(closes, nil),
		Volume:        last.Volume,
		AvgVolume:     stat.Mean(volumes, nil),
		VolatilityPct: stat.StdDev(returns, nil) * 100,
	}, nil
}
