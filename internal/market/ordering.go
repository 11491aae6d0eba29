package market

import (
	"fmt"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// ValidateCandles checks that bars form a usable history slice:
// no nil entries, a single (symbol, timeframe) series, and open times
// strictly increasing. Returns ErrInvalidOrdering on an out-of-order
// or duplicate bar.
func ValidateCandles(bars []*domain.Candle) error {
	for i, b := range bars {
		if b == nil {
			return fmt.Errorf("candle at index %d is nil", i)
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if b.Symbol != prev.Symbol || b.Timeframe != prev.Timeframe {
			return fmt.Errorf("candle at index %d is %s %s, expected %s %s",
				i, b.Symbol, b.Timeframe, prev.Symbol, prev.Timeframe)
		}
		if b.OpenTime <= prev.OpenTime {
			return fmt.Errorf("%w: open time %d at index %d follows %d",
				ErrInvalidOrdering, b.OpenTime, i, prev.OpenTime)
		}
	}
	return nil
}
