package market

import (
	"context"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
)

// SnapshotProvider supplies the current market view for a symbol.
// Implementations derive indicator features from whatever data source
// they sit on; callers treat the snapshot as an opaque point-in-time
// observation.
type SnapshotProvider interface {
	// Snapshot returns the latest market snapshot for symbol.
	// Returns ErrSnapshotUnavailable when no usable view exists.
	Snapshot(ctx context.Context, symbol string) (*domain.MarketSnapshot, error)
}

// HistoryProvider supplies ordered candle history for backtesting.
type HistoryProvider interface {
	// Slice returns candles for symbol at timeframe tf with open time in
	// [from, to] inclusive, ordered by open time ascending.
	// Returns ErrInsufficientHistory when the window holds no candles.
	Slice(ctx context.Context, symbol string, tf domain.Timeframe, from, to int64) ([]*domain.Candle, error)
}
