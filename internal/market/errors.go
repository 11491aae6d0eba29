package market

import "errors"

// Errors returned by market providers.
var (
	// ErrSnapshotUnavailable is returned when the current market view
	// cannot be assembled, e.g. too little recent history for the
	// feature window.
	ErrSnapshotUnavailable = errors.New("market snapshot unavailable")

	// ErrInsufficientHistory is returned when a requested candle slice
	// contains no data.
	ErrInsufficientHistory = errors.New("insufficient candle history")

	// ErrInvalidOrdering is returned when candles are not strictly
	// ordered by open time.
	ErrInvalidOrdering = errors.New("candles are not in ascending order")
)
