package market

import (
	"context"
	"fmt"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// DefaultSnapshotLookback is the candle window used for snapshot
// features when no explicit lookback is configured.
const DefaultSnapshotLookback = 20

// CandleProvider serves snapshots and history slices from a candle
// store. Snapshots are derived from the most recent lookback bars at
// a fixed base timeframe.
type CandleProvider struct {
	candles  storage.CandleStore
	tf       domain.Timeframe
	lookback int
}

// NewCandleProvider creates a provider over the given candle store.
// A lookback below the formula minimum falls back to
// DefaultSnapshotLookback.
func NewCandleProvider(candles storage.CandleStore, tf domain.Timeframe, lookback int) *CandleProvider {
	if lookback < minSnapshotBars {
		lookback = DefaultSnapshotLookback
	}
	return &CandleProvider{
		candles:  candles,
		tf:       tf,
		lookback: lookback,
	}
}

// Snapshot assembles the current market view from the latest candles.
func (p *CandleProvider) Snapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error) {
	bars, err := p.candles.GetLatest(ctx, symbol, p.tf, p.lookback)
	if err != nil {
		return nil, fmt.Errorf("load snapshot candles: %w", err)
	}
	if len(bars) < p.lookback {
		return nil, fmt.Errorf("%w: have %d candles for %s %s, need %d",
			ErrSnapshotUnavailable, len(bars), symbol, p.tf, p.lookback)
	}
	if err := ValidateCandles(bars); err != nil {
		return nil, fmt.Errorf("snapshot window: %w", err)
	}
	return ComputeSnapshot(symbol, bars)
}

// Slice returns the candle history for [from, to] inclusive.
func (p *CandleProvider) Slice(ctx context.Context, symbol string, tf domain.Timeframe, from, to int64) ([]*domain.Candle, error) {
	if from > to {
		return nil, fmt.Errorf("invalid range: from %d after to %d", from, to)
	}
	bars, err := p.candles.GetRange(ctx, symbol, tf, from, to)
	if err != nil {
		return nil, fmt.Errorf("load history slice: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s %s in [%d, %d]",
			ErrInsufficientHistory, symbol, tf, from, to)
	}
	if err := ValidateCandles(bars); err != nil {
		return nil, fmt.Errorf("history slice: %w", err)
	}
	return bars, nil
}

var _ SnapshotProvider = (*CandleProvider)(nil)
var _ HistoryProvider = (*CandleProvider)(nil)
